package spotify

// SetEndpoints points the client at test servers.
func (c *Client) SetEndpoints(accounts, api string) {
	c.accountsURL = accounts
	c.apiURL = api
}
