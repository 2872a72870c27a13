package bridge

import "context"

// UserInfo is the resolved identity of a remote user.
type UserInfo struct {
	ID          string
	DisplayName string
	Alias       string // preferred display alias, may be empty
	Handle      string // account handle, may be empty
	IsBot       bool
}

// SendRequest is a fully resolved outbound message.
type SendRequest struct {
	ChatID     string
	Text       string
	ThreadID   string // empty for a top-level message
	Credential string // empty to use the platform default credential
}

// Client is the opaque per-platform API collaborator. The core never performs
// raw HTTP itself; implementations live under pkg/platform and tests inject
// fakes.
type Client interface {
	SendMessage(ctx context.Context, req SendRequest) error
	ListChannels(ctx context.Context, workspaceID string) ([]ChannelInfo, error)
	ResolveUser(ctx context.Context, userID string) (*UserInfo, error)
}

// UserLookup is the subset of Client needed to resolve a sender's display
// name during normalization.
type UserLookup interface {
	ResolveUser(ctx context.Context, userID string) (*UserInfo, error)
}

// Store is the external key-value collaborator holding UserLink and
// ChannelMapping records. Records are written atomically as whole values.
type Store interface {
	Get(bucket, key string) ([]byte, bool, error)
	Set(bucket, key string, value []byte) error
	Delete(bucket, key string) error
	List(bucket string) (map[string][]byte, error)
}
