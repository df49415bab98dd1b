package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexiqai/vad-gateway/internal/observability"
)

var opts = defaultOptions()

var rootCmd = &cobra.Command{
	Use:   "vadctl",
	Short: "Offline voice activity analysis for WAV files",
	Long: `vadctl runs the gateway's voice activity detector over a WAV file
and prints per-frame decisions or the detected speech segments.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", observability.ServiceName, observability.ServiceVersion)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.wav>",
	Short: "Print detector decisions per frame",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		samples, err := loadWAV(args[0], opts.sampleRate)
		if err != nil {
			return err
		}
		return analyze(cmd.OutOrStdout(), samples, opts)
	},
}

var segmentsCmd = &cobra.Command{
	Use:   "segments <file.wav>",
	Short: "Print detected speech segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		samples, err := loadWAV(args[0], opts.sampleRate)
		if err != nil {
			return err
		}
		segments, err := detectSegments(samples, opts)
		if err != nil {
			return err
		}
		printSegments(cmd.OutOrStdout(), segments)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&opts.sampleRate, "rate", opts.sampleRate, "Detector sample rate in Hz; input is resampled to it")
	flags.IntVar(&opts.frameLength, "frame-length", opts.frameLength, "Samples per frame")
	flags.Float64Var(&opts.threshold, "threshold", opts.threshold, "Fixed energy threshold")
	flags.BoolVar(&opts.adaptive, "adaptive", opts.adaptive, "Use the noise-floor derived threshold")
	flags.BoolVar(&opts.condition, "condition", opts.condition, "Normalize and high-pass each frame")
	flags.IntVar(&opts.voiceFrames, "voice-frames", opts.voiceFrames, "Voiced frames to confirm VOICE")
	flags.IntVar(&opts.silenceFrames, "silence-frames", opts.silenceFrames, "Silent frames to confirm SILENCE")

	analyzeCmd.Flags().BoolVar(&opts.all, "all", opts.all, "Print every frame, not only state changes")

	segmentsCmd.Flags().IntVar(&opts.endSilence, "end-silence", opts.endSilence, "Non-voice decisions closing a segment")
	segmentsCmd.Flags().IntVar(&opts.maxSamples, "max-samples", opts.maxSamples, "Maximum segment length in samples (0 disables)")

	rootCmd.AddCommand(analyzeCmd, segmentsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
