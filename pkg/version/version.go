package version

// EmptyValue is the value we use when running a version that wasn't built
// with `-ldflags "-X github.com/sidkik/launchpi/pkg/version.Version=..."`.
const EmptyValue = "dev"

// Version is the latest tag on git for releases. On non-release commits, it may
// include additional information such as the most recent commit hash.
var Version = EmptyValue
