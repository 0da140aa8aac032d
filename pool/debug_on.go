//go:build mempooldebug

package pool

// In debug builds every pool takes the checked free path.
const debugBuild = true
