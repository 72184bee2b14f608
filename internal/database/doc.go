// Package database is the SQLite feature store for the media pipeline.
//
// It holds one media row per ingested file, at most one per-type feature row
// (image_features, audio_features or video_features) per media item, and
// any number of thumbnail rows. Feature columns store JSON arrays; NULL
// means the family has not been computed.
//
// Writes that belong to one media item go through a [Tx] obtained from
// [Database.BeginTx] and finished with [Database.EndTx], which rolls back on
// error. [Database.RecordProcessingError] deliberately runs outside any
// transaction.
//
// The database uses WAL mode with foreign keys enabled, so deleting a media
// row cascades to its features and thumbnails.
package database
