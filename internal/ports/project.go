package ports

// ArchiveLocator supplies the single archive location used by both
// backends.
type ArchiveLocator interface {
	ArchivePath() string
}

// ProjectFiles supplies the ordered list of project files, relative to
// the project root. It is called on every compress or decompress.
type ProjectFiles interface {
	ProjectFiles() ([]string, error)
}

// MemberSelector chooses which archive members a restore requests. It lets
// glob patterns match what the archive holds instead of the working tree.
type MemberSelector interface {
	SelectMembers(members []string) ([]string, error)
}
