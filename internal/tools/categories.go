package tools

// Tool names, grouped the way agents are granted them.
const (
	ReadFile     = "read_file"
	WriteFile    = "write_file"
	ListFiles    = "list_files"
	RunCommand   = "run_command"
	SearchMemory = "search_memory"
	Remember     = "remember"
	SystemStatus = "system_status"
	CurrentTime  = "current_time"
	UsageSummary = "usage_summary"
)

var (
	ReadOnlyFileTools = []string{ReadFile, ListFiles}
	FileTools         = []string{ReadFile, WriteFile, ListFiles}
	MemoryTools       = []string{SearchMemory, Remember}
)

// Group concatenates tool name groups.
func Group(groups ...[]string) []string {
	var names []string
	for _, g := range groups {
		names = append(names, g...)
	}
	return names
}
