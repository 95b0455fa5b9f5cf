// Package client is a REST client for a running lifecycle service, used
// by the command line tools.
//
// Channel calls go through resty and are sent exactly once. Health probes
// go through retryablehttp and are retried while the service starts up.
package client
