package buildconfig

// Plugin names understood by the bundler engine adapter and the runtime that
// executes composed configurations.
const (
	WatchIgnorePlugin         = "WatchIgnorePlugin"
	ExtraWatchPlugin          = "ExtraWatchPlugin"
	DefinitionGeneratorPlugin = "ModuleDefinitionGeneratorPlugin"
	BuildScriptPlugin         = "MSDyn365BuildScriptPlugin"
	TypeCheckerPlugin         = "ForkTsCheckerWebpackPlugin"
	DefinePlugin              = "DefinePlugin"
	VersionGeneratorPlugin    = "VersionGenerator"
	CopyPlugin                = "CopyWebpackPlugin"
	StatsPlugin               = "StatsPlugin"
	BundleAnalyzerPlugin      = "BundleAnalyzerPlugin"
)

// NullLoader discards the contents of the modules its rule matches.
const NullLoader = "null-loader"

// StatsFile returns the stats file name written for a target.
func StatsFile(target string) string {
	return "stats-" + target + ".json"
}

// AnalysisReportFile returns the bundle analysis report name for a target.
func AnalysisReportFile(target string) string {
	return "bundle-" + target + "-analysis.html"
}
