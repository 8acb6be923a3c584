// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/jeranaias/nexuschat/internal/api"
	"github.com/jeranaias/nexuschat/internal/state"
)

// UploadFailure is one file that did not make it to the server.
type UploadFailure struct {
	Path string
	Err  error
}

// UploadReport summarizes an UploadFiles call.
type UploadReport struct {
	SessionID int64
	Uploaded  []api.UploadedItem
	Failures  []UploadFailure
}

// Succeeded is the number of uploaded files.
func (r UploadReport) Succeeded() int { return len(r.Uploaded) }

// Failed is the number of files that were rejected or failed to upload.
func (r UploadReport) Failed() int { return len(r.Failures) }

// Err joins the per-file errors, or returns nil when every file succeeded.
func (r UploadReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(f.Path), f.Err))
	}
	return errors.Join(errs...)
}

// UploadFiles uploads paths one after another into the active conversation,
// creating one if needed. A failed file is reported inline and the next one
// is tried; only a 401 or a cancelled context stops the batch.
func (c *Controller) UploadFiles(ctx context.Context, paths []string) (UploadReport, error) {
	if len(paths) == 0 {
		return UploadReport{}, nil
	}
	sessionID, err := c.ensureSession(ctx)
	if err != nil {
		return UploadReport{}, err
	}

	report := UploadReport{SessionID: sessionID}
	for _, path := range paths {
		name := filepath.Base(path)
		res, err := c.uploadOne(ctx, sessionID, path)
		if err != nil {
			c.logger.Warn("upload failed", zap.String("file", name), zap.Int64("session_id", sessionID), zap.Error(err))
			report.Failures = append(report.Failures, UploadFailure{Path: path, Err: err})
			if api.IsUnauthorized(err) {
				c.store.Dispatch(state.Unauthorized{Message: SessionExpiredMessage})
				return report, err
			}
			c.store.Dispatch(state.UploadFailed{SessionID: sessionID, Filename: name, Err: err.Error()})
			if isCanceled(err) || ctx.Err() != nil {
				return report, err
			}
			continue
		}

		item := res.Item()
		report.Uploaded = append(report.Uploaded, item)
		c.logger.Info("file uploaded", zap.String("file", name), zap.Int64("file_id", item.ID), zap.String("file_type", item.FileType))
		c.store.Dispatch(state.FileUploaded{SessionID: sessionID, Item: item, Summary: uploadSummary(res)})
	}

	c.refreshQuiet(ctx)
	if report.Failed() > 0 {
		c.store.Dispatch(state.SetNotice{Notice: state.Notice{
			Level: state.NoticeError,
			Text:  fmt.Sprintf("%s of %d failed to upload", plural(report.Failed(), "file"), len(paths)),
		}})
	}
	return report, report.Err()
}

func (c *Controller) uploadOne(ctx context.Context, sessionID int64, path string) (*api.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if err := c.checkFile(path, info.Size(), f); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return c.api.UploadFile(ctx, sessionID, filepath.Base(path), f)
}

// checkFile applies the server's upload rules locally: the extension must be
// allowed, the size within the limit, and the content must match the
// extension.
func (c *Controller) checkFile(path string, size int64, r io.Reader) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !slices.Contains(c.opts.AllowedExtensions, ext) {
		return fmt.Errorf("%w: %q (allowed: %s)", ErrFileType, filepath.Ext(path), strings.Join(c.opts.AllowedExtensions, ", "))
	}
	if size > c.opts.MaxFileSize {
		return fmt.Errorf("%w: %s exceeds %s", ErrFileTooLarge,
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(c.opts.MaxFileSize)))
	}

	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return err
	}
	if !contentMatches(ext, detected) {
		return fmt.Errorf("%w: .%s file looks like %s", ErrFileContent, ext, detected.String())
	}
	return nil
}

// contentMatches checks the detected type, or any of its parents, against
// what the extension promises.
func contentMatches(ext string, detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		switch ext {
		case "txt":
			if m.Is("text/plain") {
				return true
			}
		case "pdf":
			if m.Is("application/pdf") {
				return true
			}
		case "png", "jpg", "jpeg", "gif", "webp":
			if strings.HasPrefix(m.String(), "image/") {
				return true
			}
		default:
			// Extensions added in config have no known signature.
			return true
		}
	}
	return false
}

// uploadSummary condenses the server's inline analyses.
func uploadSummary(res *api.UploadResult) string {
	var parts []string
	for _, a := range res.Analyses {
		if a.Success != nil && !*a.Success {
			continue
		}
		if text := strings.TrimSpace(a.Content); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 && res.VisionPreview != "" {
		parts = append(parts, strings.TrimSpace(res.VisionPreview))
	}
	return strings.Join(parts, "\n\n")
}

// =============================================================================
// ACTIVE FILE
// =============================================================================

func (c *Controller) activeFile() (int64, api.UploadedItem, error) {
	st := c.store.State()
	if st.ActiveID == 0 {
		return 0, api.UploadedItem{}, ErrNoActiveConversation
	}
	if st.ActiveFile == nil {
		return 0, api.UploadedItem{}, ErrNoActiveFile
	}
	return st.ActiveID, *st.ActiveFile, nil
}

// AnalyzeImage asks the server to describe the active file, which must be an
// image. The analysis is added to the thread as a note.
func (c *Controller) AnalyzeImage(ctx context.Context, prompt string) (*api.ImageAnalysis, error) {
	sessionID, file, err := c.activeFile()
	if err == nil && !file.IsImage() {
		err = ErrNotImage
	}
	if err != nil {
		return nil, c.notice("Cannot analyze", err)
	}

	res, err := c.api.AnalyzeImage(ctx, file.ID, strings.TrimSpace(prompt))
	if err != nil {
		return nil, c.fail("Image analysis failed", err)
	}
	c.store.Dispatch(state.SystemNote{
		SessionID: sessionID,
		Text:      fmt.Sprintf("Analysis of %s:\n\n%s", file.OriginalFilename, res.Analysis),
	})
	return res, nil
}

// AskAboutFile asks a question about the active file. The exchange is shown
// like a regular message and shares its one-at-a-time limit.
func (c *Controller) AskAboutFile(ctx context.Context, question string) (*api.FileAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyMessage
	}
	sessionID, file, err := c.activeFile()
	if err != nil {
		return nil, c.notice("Cannot ask", err)
	}
	if !c.sending.CompareAndSwap(false, true) {
		c.info(ErrBusy.Error())
		return nil, ErrBusy
	}
	defer c.sending.Store(false)

	c.store.Dispatch(state.SendStarted{
		SessionID: sessionID,
		Text:      fmt.Sprintf("Question about %s: %s", file.OriginalFilename, question),
		At:        c.opts.Now(),
	})
	answer, err := c.api.AskAboutFile(ctx, sessionID, file.ID, question)
	if err != nil {
		c.logger.Warn("ask about file failed", zap.Int64("item_id", file.ID), zap.Error(err))
		if api.IsUnauthorized(err) {
			c.store.Dispatch(state.Unauthorized{Message: SessionExpiredMessage})
			return nil, err
		}
		c.store.Dispatch(state.SendFailed{SessionID: sessionID, Err: err.Error()})
		return nil, err
	}
	c.store.Dispatch(state.ReplyReceived{SessionID: sessionID, Text: answer.Answer, At: c.opts.Now()})
	c.refreshQuiet(ctx)
	return answer, nil
}

// DeleteFile deletes an uploaded item.
func (c *Controller) DeleteFile(ctx context.Context, itemID int64) error {
	if err := c.api.DeleteItem(ctx, itemID); err != nil {
		return c.fail("Could not delete file", err)
	}
	c.store.Dispatch(state.FileDeleted{ItemID: itemID})
	c.info("File deleted")
	return nil
}

// Analyses lists the stored analyses of the active conversation.
func (c *Controller) Analyses(ctx context.Context) ([]api.Analysis, error) {
	sessionID := c.store.State().ActiveID
	if sessionID == 0 {
		return nil, c.notice("Cannot list analyses", ErrNoActiveConversation)
	}
	out, err := c.api.ListAnalyses(ctx, sessionID)
	if err != nil {
		return nil, c.fail("Could not load analyses", err)
	}
	return out, nil
}
