package songlink

// SetAPIBase points the client at a test server.
func (c *Client) SetAPIBase(base string) {
	c.apiBase = base
}
