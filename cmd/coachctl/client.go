package main

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// newClient builds a resty client pointed at the service. Auth is attached
// only when a token was supplied.
func newClient() *resty.Client {
	c := resty.New().SetBaseURL(apiFlag)
	if tokenFlag != "" {
		c.SetAuthToken(tokenFlag)
	}
	return c
}

// checkResp turns non-2xx responses into errors carrying the body.
func checkResp(resp *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	return resp.Body(), nil
}
