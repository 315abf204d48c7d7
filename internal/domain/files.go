package domain

// FileRole identifies which of the expected per-sample inputs a file fills.
type FileRole string

const (
	RoleReportedVariants   FileRole = "reported_variants"
	RoleStructuralVariants FileRole = "reported_structural_variants"
	RoleSupplementaryHTML  FileRole = "supplementary_html"
)

// ExpectedRoleCount is the number of files a complete sample group carries,
// one per role.
const ExpectedRoleCount = 3

// InputFile references one discovered input, either on the local filesystem
// (Path set) or already on the platform (ID set). Never mutated after
// classification.
type InputFile struct {
	// ID is the platform file handle, empty for local files.
	ID string
	// Path is the local filesystem path, empty for platform files.
	Path string
	// Name is the bare filename the role was matched against.
	Name string
	Role FileRole
}

// Local reports whether the file still lives on the local filesystem and
// needs uploading before a job can consume it.
func (f InputFile) Local() bool {
	return f.Path != ""
}
