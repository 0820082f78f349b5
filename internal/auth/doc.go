// Package auth validates bearer tokens for the Estufa API.
//
// Tokens are HS256 JWTs issued by the greenhouse web tier. Besides the
// standard claims they carry the user's access level (1 to 4). Each API
// permission requires a minimum level; the mapping is static and lives in
// permissions.go.
//
// The bridge never stores users or passwords. GenerateAccessToken exists so
// tools and tests can mint tokens signed with the shared secret.
package auth
