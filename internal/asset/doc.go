// Package asset defines the records that flow through scan resolution and
// check submission.
//
// # Records
//
//   - ScanPayload: the raw scan, optionally carrying an embedded ScanRecord
//   - ResolvedAsset: the canonical asset record produced by resolution
//   - CheckRequest: an operator's condition check bound to a ResolvedAsset
//
// A ResolvedAsset always has an AssetID. Anything that cannot produce one is
// treated as absent, never as a partial record.
//
// Scan input is NFC-normalized so that identifiers typed on different devices
// compare byte-equal in the cache and the queue.
package asset
