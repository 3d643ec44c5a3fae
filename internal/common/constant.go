package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// ClientIDHeaderName carries the originator identifier of the calling
// client, echoed back in push notifications.
const ClientIDHeaderName = "client_id"

// Metadata keys of the client's local key/value table.
const (
	MetaUserName = "username"
	MetaSalt     = "salt"
	MetaVerifier = "verifier"
	MetaClientID = "client_id"
	MetaLastSync = "last_sync"
)
