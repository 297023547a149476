// Package exitcode lists the process exit statuses of tasksync.
package exitcode

const (
	Success = 0

	// UserError covers bad arguments, unknown task numbers, a held sync lock
	// and local store failures.
	UserError = 1

	// AuthError means the remote service cannot be reached as the user:
	// missing oauth_client.json, no token, or a rejected credential.
	AuthError = 2

	// BackendError is a remote API, network or sync commit failure.
	BackendError = 3
)
