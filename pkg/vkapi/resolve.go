package vkapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// MethodResolveScreenName maps a screen name to an object id.
const MethodResolveScreenName = "utils.resolveScreenName"

// Object types returned by utils.resolveScreenName.
const (
	ObjectTypeUser        = "user"
	ObjectTypeGroup       = "group"
	ObjectTypePage        = "page"
	ObjectTypeEvent       = "event"
	ObjectTypeApplication = "application"
)

// ResolvedObject is the "response" object of utils.resolveScreenName.
type ResolvedObject struct {
	Type     string `json:"type"`
	ObjectID int64  `json:"object_id"`
}

// OwnerID returns the wall owner id: positive for users, negative for
// communities.
func (o ResolvedObject) OwnerID() (int64, error) {
	switch o.Type {
	case ObjectTypeUser:
		return o.ObjectID, nil
	case ObjectTypeGroup, ObjectTypePage, ObjectTypeEvent:
		return -o.ObjectID, nil
	default:
		return 0, fmt.Errorf("%q objects have no wall", o.Type)
	}
}

// ResolveScreenName looks up a screen name. An unknown name yields
// ErrPageNotFound.
func (c *Client) ResolveScreenName(ctx context.Context, screenName string) (*ResolvedObject, error) {
	params := url.Values{"screen_name": {screenName}}

	var raw json.RawMessage
	if err := c.Call(ctx, MethodResolveScreenName, params, &raw); err != nil {
		return nil, err
	}

	// VK answers unknown names with an empty array.
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, fmt.Errorf("%s: %w", screenName, ErrPageNotFound)
	}

	var obj ResolvedObject
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, malformed(MethodResolveScreenName, "undecodable resolved object", err)
	}
	if obj.ObjectID <= 0 || obj.Type == "" {
		return nil, fmt.Errorf("%s: %w", screenName, ErrPageNotFound)
	}
	return &obj, nil
}
