// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package safeextract decides where, and whether, the entries of an archive
// may be written to disk.
//
// Every entry passes two steps. [Resolve] turns the archive-internal key of
// an entry into an absolute destination below the extraction root, applying
// full-path reconstruction or flattening and tar style strip-components, and
// rejects any destination that would leave the root with a
// [*PathTraversalError]. [WriteEntryToFile] then materializes the entry at
// the resolved path: symbolic links through the configured [SymlinkWriter],
// regular files through an injected open-and-write operation that honors the
// overwrite policy of the [Config].
//
// Filesystem access goes through the [Target] interface. [TargetDisk] writes
// to the operating system, [Memory] keeps everything in memory and is handy
// for tests.
//
// [Unpack] and [UnpackTo] drive the two steps for tar, zip, rar and 7z
// archives as well as compressed streams, collecting [TelemetryData] along
// the way.
package safeextract
