//go:build !mempooldebug

package pool

// debugBuild is false in normal builds; Config.Checked opts a single pool in.
const debugBuild = false
