package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cfgpkg "github.com/local/djvutailor/internal/config"
)

var (
	flagOutput       string
	flagResolution   int
	flagLossLevel    int
	flagQuality      string
	flagThreads      int
	flagTempDir      string
	flagKeepTemp     bool
	flagAllowPartial bool
	flagForce        bool
	flagVerbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "djvutailor INPUTDIR",
	Short: "Assemble a multi-page DjVu document from a directory of page scans",
	Long: `djvutailor converts a directory of TIFF page images into a single DjVu
document. Each page is either a separated foreground/background pair stored
in INPUTDIR/foreground and INPUTDIR/background, or a single bitonal or
continuous-tone image stored directly in INPUTDIR.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgpkg.FromEnv()
		applyFlags(cmd, &cfg)
		return run(cmd.Context(), cfg, args[0])
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&flagOutput, "outputfile", "o", "", "output file (default INPUTDIR/output.djvu)")
	f.IntVarP(&flagResolution, "resolution", "r", 300, "resolution of the input images (dpi)")
	f.IntVarP(&flagLossLevel, "cr-cjb2", "b", 1, "compression ratio for bitonal pages")
	f.StringVarP(&flagQuality, "cr-c44", "q", "74,89,99", "compression quality for the C44 and IW44 layers")
	f.IntVarP(&flagThreads, "threads", "t", 1, "number of pages converted in parallel")
	f.StringVar(&flagTempDir, "temp-dir", "", "temporary directory for intermediate files")
	f.BoolVar(&flagKeepTemp, "keep-temp", false, "keep temporary files")
	f.BoolVar(&flagAllowPartial, "allow-partial", false, "assemble successful pages even when some pages failed")
	f.BoolVar(&flagForce, "force", false, "overwrite an existing output file without asking")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug output")
}

// applyFlags overlays explicitly-set flags onto the env-derived config.
func applyFlags(cmd *cobra.Command, cfg *cfgpkg.Config) {
	f := cmd.Flags()
	if f.Changed("resolution") {
		cfg.Convert.Resolution = flagResolution
	}
	if f.Changed("cr-cjb2") {
		cfg.Convert.LossLevel = flagLossLevel
	}
	if f.Changed("cr-c44") {
		cfg.Convert.Quality = flagQuality
	}
	if f.Changed("threads") {
		cfg.Convert.Workers = flagThreads
	}
	if f.Changed("temp-dir") {
		cfg.Convert.TempDir = flagTempDir
	}
	if flagKeepTemp {
		cfg.Convert.KeepTemp = true
	}
	if flagAllowPartial {
		cfg.Convert.AllowPartial = true
	}
	if flagVerbose {
		cfg.Logging.Level = "debug"
	}
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
