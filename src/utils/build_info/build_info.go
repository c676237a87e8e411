package build_info

// Set during build with -ldflags "-X github.com/arena-labs/syncer/src/utils/build_info.Version=..."
var Version = "dev"
