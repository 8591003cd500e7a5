package version

// Version is the version of edl-topology. It is set at link time.
var Version = "dev"
