// Package pageid turns a VK page address into the numeric wall owner id
// expected by wall.get.
package pageid

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Sternrassler/vktop/pkg/vkapi"
)

// ErrInvalidURL is returned for addresses that do not name a VK page.
var ErrInvalidURL = errors.New("invalid page url")

// Kind tells how a Ref identifies its page.
type Kind string

const (
	KindUser       Kind = "id"
	KindClub       Kind = "club"
	KindPublic     Kind = "public"
	KindEvent      Kind = "event"
	KindScreenName Kind = "screen_name"
)

var (
	prefix = `^(?:https?://)?(?:(?:www|m)\.)?(?:vk\.com/)?`

	numericRe = regexp.MustCompile(prefix + `(id|club|public|event)(\d+)/?$`)
	nameRe    = regexp.MustCompile(prefix + `([a-z0-9_.]+)/?$`)
	letterRe  = regexp.MustCompile(`[a-z]`)
)

// Ref is a parsed page address.
type Ref struct {
	Kind Kind

	// ID is set for numeric addresses.
	ID int64

	// ScreenName is set for KindScreenName.
	ScreenName string
}

func (r Ref) String() string {
	if r.Kind == KindScreenName {
		return r.ScreenName
	}
	return string(r.Kind) + strconv.FormatInt(r.ID, 10)
}

// Parse accepts vk.com/durov, https://vk.com/club1, public1, id1 and similar
// forms. Matching is case-insensitive; query strings and fragments are
// ignored.
func Parse(raw string) (Ref, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	if m := numericRe.FindStringSubmatch(s); m != nil {
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || id <= 0 {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		return Ref{Kind: Kind(m[1]), ID: id}, nil
	}

	if m := nameRe.FindStringSubmatch(s); m != nil {
		name := m[1]
		if name == "vk.com" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || !letterRe.MatchString(name) {
			return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		return Ref{Kind: KindScreenName, ScreenName: name}, nil
	}

	return Ref{}, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
}

// Resolver looks up screen names.
type Resolver interface {
	ResolveScreenName(ctx context.Context, screenName string) (*vkapi.ResolvedObject, error)
}

// OwnerID returns the wall owner id for ref: positive for users, negative
// for communities. Only screen names hit the network.
func OwnerID(ctx context.Context, resolver Resolver, ref Ref) (int64, error) {
	switch ref.Kind {
	case KindUser:
		return ref.ID, nil
	case KindClub, KindPublic, KindEvent:
		return -ref.ID, nil
	case KindScreenName:
		obj, err := resolver.ResolveScreenName(ctx, ref.ScreenName)
		if err != nil {
			return 0, fmt.Errorf("resolve %s: %w", ref.ScreenName, err)
		}
		id, err := obj.OwnerID()
		if err != nil {
			return 0, fmt.Errorf("resolve %s: %w", ref.ScreenName, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidURL, ref.Kind)
	}
}

// Resolve parses raw and returns its owner id.
func Resolve(ctx context.Context, resolver Resolver, raw string) (int64, error) {
	ref, err := Parse(raw)
	if err != nil {
		return 0, err
	}
	return OwnerID(ctx, resolver, ref)
}
