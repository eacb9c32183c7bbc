package timeline

import (
	"errors"
	"fmt"
	"strconv"
)

// Errors
var (
	// ErrMissingTagName means a hashtag timeline was rendered without a
	// resolved tag name; the channel name cannot be produced.
	ErrMissingTagName = errors.New("hashtag timeline has no resolved tag name")
)

// Kind identifies which stream a Timeline refers to.
type Kind int

const (
	Public Kind = iota
	PublicMedia
	PublicLocal
	PublicLocalMedia
	Hashtag
	HashtagLocal
	User
	UserNotification
	List
	Direct
)

// Timeline is one subscription target: a stream kind plus the id that
// scopes it (tag id, account id, or list id, depending on the kind).
type Timeline struct {
	kind Kind
	id   int64
	// name is the hashtag name when it was known at construction; the
	// tag cache supplies it otherwise.
	name string
}

// NewPublic returns one of the public stream variants.
func NewPublic(kind Kind) Timeline {
	return Timeline{kind: kind}
}

// NewHashtag returns a hashtag timeline. name may be "" when only the
// tag id is known; rendering then depends on a cache-resolved name.
func NewHashtag(kind Kind, id int64, name string) Timeline {
	return Timeline{kind: kind, id: id, name: name}
}

// NewUser returns the home (or notification) timeline for an account.
func NewUser(kind Kind, accountID int64) Timeline {
	return Timeline{kind: kind, id: accountID}
}

// NewList returns the timeline for a list.
func NewList(listID int64) Timeline {
	return Timeline{kind: List, id: listID}
}

// NewDirect returns the direct-message timeline for an account.
func NewDirect(accountID int64) Timeline {
	return Timeline{kind: Direct, id: accountID}
}

// Kind returns the stream kind.
func (t Timeline) Kind() Kind { return t.kind }

// TagID returns the tag id for hashtag timelines.
func (t Timeline) TagID() (int64, bool) {
	if t.kind == Hashtag || t.kind == HashtagLocal {
		return t.id, true
	}
	return 0, false
}

// WireName renders the canonical Redis channel name. tagName is the
// cache-resolved hashtag name, if any; the name given at construction
// takes precedence. Hashtag timelines without either fail with
// ErrMissingTagName.
func (t Timeline) WireName(tagName string) (string, error) {
	switch t.kind {
	case Public:
		return "timeline:public", nil
	case PublicMedia:
		return "timeline:public:media", nil
	case PublicLocal:
		return "timeline:public:local", nil
	case PublicLocalMedia:
		return "timeline:public:local:media", nil
	case Hashtag, HashtagLocal:
		name := t.name
		if name == "" {
			name = tagName
		}
		if name == "" {
			return "", ErrMissingTagName
		}
		if t.kind == HashtagLocal {
			return "timeline:hashtag:" + name + ":local", nil
		}
		return "timeline:hashtag:" + name, nil
	case User:
		return "timeline:" + strconv.FormatInt(t.id, 10), nil
	case UserNotification:
		return "timeline:" + strconv.FormatInt(t.id, 10) + ":notification", nil
	case List:
		return "timeline:list:" + strconv.FormatInt(t.id, 10), nil
	case Direct:
		return "timeline:direct:" + strconv.FormatInt(t.id, 10), nil
	default:
		return "", fmt.Errorf("unknown timeline kind %d", t.kind)
	}
}
