/*
Package filesystem wraps os.Stat, os.Open and os.ReadDir with retry logic for
NFS stale file handle (ESTALE) errors.

Media and thumbnail directories are frequently NFS mounts. A stale handle is
transient, so operations are retried with exponential backoff; every other
error is returned immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Metrics are labeled by volume. Register the pipeline's directories once at
startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		filesystem.VolumeUploads:    cfg.UploadRoot,
		filesystem.VolumeThumbnails: cfg.ThumbnailDir,
		filesystem.VolumeDatabase:   cfg.DatabaseDir,
	}))

Paths outside every registered directory are labeled "unknown".
*/
package filesystem
