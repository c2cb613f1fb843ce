package downloader

// ResolveFormat exposes format resolution for tests.
func (d *Downloader) ResolveFormat(format string) string {
	return d.resolveFormat(format)
}
