package versions

import "github.com/Masterminds/semver/v3"

// WrittenByNewer reports whether writer, the release recorded in a stored
// configuration document, is strictly newer than running. Only two valid
// semantic versions are compared. Development builds and unversioned
// documents never count as newer.
func WrittenByNewer(writer, running string) bool {
	w, err := semver.NewVersion(writer)
	if err != nil {
		return false
	}
	r, err := semver.NewVersion(running)
	if err != nil {
		return false
	}
	return w.GreaterThan(r)
}
