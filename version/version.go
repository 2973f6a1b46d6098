// version.go - Build-Version, per -ldflags "-X github.com/louis-chevallier/stylegan/version.Version=..." gesetzt
package version

var Version string = "0.0.0"
