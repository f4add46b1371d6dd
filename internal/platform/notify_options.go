package platform

import "time"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// AppName is the sender shown by the notification center.
	AppName string
	// IconPath, when non-empty, points to an image file shown with the
	// notification if the platform supports it.
	IconPath string
	// Timeout is how long the notification stays visible. Zero uses the
	// platform default.
	Timeout time.Duration
}

func (o Options) appName() string {
	if o.AppName == "" {
		return "SwimLens"
	}
	return o.AppName
}
