package version

// Version is the current version of Chattify.
// This value can be overridden at build time using:
//   go build -ldflags="-X 'github.com/Tayyab-Ali-786/Chattify/internal/version.Version=v1.0.0'"
var Version = "dev"
