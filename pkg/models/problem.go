// Package models holds the Beacon data model shared by the notify, uptime
// and agent plugins.
package models

// APIProblem documents the RFC 7807 body returned by plugin error responses.
type APIProblem struct {
	Type     string `json:"type" example:"https://beacon.dev/problems/bad-request"`
	Title    string `json:"title" example:"Bad Request"`
	Status   int    `json:"status" example:"400"`
	Detail   string `json:"detail,omitempty" example:"invalid monitor id"`
	Instance string `json:"instance,omitempty" example:"/api/v1/uptime/monitors/abc/check"`
}
