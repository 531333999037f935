package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteConnectAuthorize = "/connect/{platform}/authorize"
	RouteConnectCallback  = "/connect/{platform}/callback"
	RouteConnectStatus    = "/connect/{platform}/status"
	RouteConnect          = "/connect/{platform}"

	RoutePublish = "/publish/{platform}"

	RouteHealth = "/health"
)
