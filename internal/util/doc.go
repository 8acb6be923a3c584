// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the nexuschat packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync (exports, config)
//   - TruncateRunes: UTF-8 safe truncation with ellipsis (session titles)
//   - TruncateWidth: display-width truncation for terminal columns (sidebar)
//   - PadWidth: right-pads a string to a display width
package util
