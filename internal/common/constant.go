package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// MaxUploadBytes is the default upper bound for a single uploaded blob.
const MaxUploadBytes int64 = 10 * 1024 * 1024
