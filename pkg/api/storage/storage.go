package storage

import "context"

// Reader provides read access to result files dropped into a backend
// (local filesystem or S3) under {discovery_path}/builds/{build_id}/. It is
// used by the ingester to discover and read files without knowing the
// underlying storage details.
type Reader interface {
	// ListBuildIDs returns the build directory names under the builds
	// directory for the given discovery path.
	ListBuildIDs(ctx context.Context, discoveryPath string) ([]string, error)

	// ListBuildFiles returns the names of the files directly inside a
	// build directory, sorted.
	ListBuildFiles(
		ctx context.Context, discoveryPath, buildID string,
	) ([]string, error)

	// GetBuildFile reads a file from a specific build directory.
	// Returns (nil, nil) when the file does not exist.
	GetBuildFile(
		ctx context.Context, discoveryPath, buildID, filename string,
	) ([]byte, error)

	// DiscoveryPaths returns all configured discovery paths.
	DiscoveryPaths() []string
}

// Key returns the ledger key of a file relative to its discovery path.
func Key(buildID, filename string) string {
	return "builds/" + buildID + "/" + filename
}
