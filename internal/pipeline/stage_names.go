package pipeline

// StageName is a strongly-typed identifier for a build stage. All canonical
// stages are declared as constants here for compile-time safety.
type StageName string

// Canonical stage names, in their planned order.
const (
	StageInitramfs  StageName = "assemble_initramfs"
	StageFormat     StageName = "format_sources"
	StageKernel     StageName = "build_kernel"
	StageBootloader StageName = "build_bootloader"
	StageStrip      StageName = "strip_binaries"
	StageImage      StageName = "assemble_image"
	StageDocs       StageName = "build_docs"
	StageEmulator   StageName = "run_emulator"
)

// StageDef pairs a stage name with its executing function (internal wiring helper).
type StageDef struct {
	Name StageName
	Fn   Stage
}
