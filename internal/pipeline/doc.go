// Package pipeline turns stored media items into feature records.
//
// Three independent passes run against the same store:
//
//   - RunBaseline processes unprocessed items with the cheap extractors,
//     storing handcrafted features, metadata and a default thumbnail.
//   - RunBackfill adds deep image embeddings to already processed images,
//     touching only the deep and combined feature columns.
//   - RunReconcile records thumbnail files left on disk without a database
//     row, for example by a run that stopped before committing.
//
// Every pass is sequential and commits each item on its own, so an
// interrupted run leaves finished items durable and can simply be run again.
// One item's failure never stops the batch.
package pipeline
