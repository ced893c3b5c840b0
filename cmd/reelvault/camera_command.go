package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelvault/internal/camera"
	"reelvault/internal/media"
	"reelvault/internal/store"
)

func newCameraCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Manage cameras, identification patterns and signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newCameraListCommand(ctx))
	cmd.AddCommand(newCameraAddCommand(ctx))
	cmd.AddCommand(newCameraPatternCommand(ctx))
	cmd.AddCommand(newCameraMatchCommand(ctx))
	cmd.AddCommand(newCameraTrainCommand(ctx))
	cmd.AddCommand(newCameraExportCommand(ctx))
	cmd.AddCommand(newCameraImportCommand(ctx))
	return cmd
}

func newCameraListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered cameras",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			cameras, err := st.ListCameras(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(cameras))
			for _, cam := range cameras {
				rows = append(rows, []string{
					strconv.FormatInt(cam.ID, 10), cam.Name, cam.Make, cam.Model, string(cam.Medium),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Make", "Model", "Medium"},
				rows,
				0,
			))
			return nil
		},
	}
}

func newCameraAddCommand(ctx *commandContext) *cobra.Command {
	var (
		makeFlag   string
		modelFlag  string
		mediumFlag string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			cam := &store.Camera{Name: args[0], Make: makeFlag, Model: modelFlag}
			if mediumFlag != "" {
				medium, ok := media.ParseMedium(mediumFlag)
				if !ok {
					return fmt.Errorf("unknown medium %q", mediumFlag)
				}
				cam.Medium = medium
			}
			created, err := st.CreateCamera(cmd.Context(), cam)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera %q registered (id %d)\n", created.Name, created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&makeFlag, "make", "", "Camera make")
	cmd.Flags().StringVar(&modelFlag, "model", "", "Camera model")
	cmd.Flags().StringVar(&mediumFlag, "medium", "", "Source medium (legacy_tape, film_scan, modern_digital)")
	return cmd
}

func newCameraPatternCommand(ctx *commandContext) *cobra.Command {
	var (
		kindFlag     string
		priorityFlag int
	)

	cmd := &cobra.Command{
		Use:   "pattern <camera-id> <pattern>",
		Short: "Attach an identification pattern to a camera",
		Long:  "Attach an identification pattern to a camera. Filename patterns wrapped in slashes (/GOPR\\d+/) are treated as regular expressions; anything else matches as a case-insensitive substring.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cameraID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid camera id %q", args[0])
			}
			kind, err := store.ParsePatternKind(kindFlag)
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			pattern, err := st.AddCameraPattern(cmd.Context(), &store.CameraPattern{
				CameraID: cameraID,
				Kind:     kind,
				Pattern:  args[1],
				Priority: priorityFlag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pattern %d added (%s %q, priority %d)\n",
				pattern.ID, pattern.Kind, pattern.Pattern, pattern.Priority)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "filename", "Pattern kind (filename, folder, extension)")
	cmd.Flags().IntVar(&priorityFlag, "priority", 0, "Pattern priority; higher wins")
	return cmd
}

func newCameraMatchCommand(ctx *commandContext) *cobra.Command {
	var mediumFlag string

	cmd := &cobra.Command{
		Use:   "match <path>",
		Short: "Show which camera a file resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var medium media.Medium
			if mediumFlag != "" {
				parsed, ok := media.ParseMedium(mediumFlag)
				if !ok {
					return fmt.Errorf("unknown medium %q", mediumFlag)
				}
				medium = parsed
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			matcher, err := ctx.newMatcher(cmd.Context(), st)
			if err != nil {
				return err
			}

			var meta *media.Metadata
			if _, statErr := os.Stat(args[0]); statErr == nil {
				probed, probeErr := media.ProbeWithTimeout(cmd.Context(), media.FFprobeProber{}, args[0],
					time.Duration(cfg.Import.ProbeTimeout)*time.Second)
				if probeErr == nil {
					meta = &probed
				}
			}

			match := matcher.Match(args[0], medium, meta)
			if match == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no match")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (method %s, confidence %.2f)\n",
				match.Name, match.Method, match.Confidence)
			return nil
		},
	}

	cmd.Flags().StringVar(&mediumFlag, "medium", "", "Medium hint (legacy_tape, film_scan, modern_digital)")
	return cmd
}

func newCameraTrainCommand(ctx *commandContext) *cobra.Command {
	var (
		nameFlag string
		saveFlag bool
	)

	cmd := &cobra.Command{
		Use:   "train [sample-files...]",
		Short: "Derive camera signatures from sample footage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			session, err := camera.NewTrainingSession(nameFlag)
			if err != nil {
				return err
			}

			for _, path := range args {
				meta, probeErr := media.ProbeWithTimeout(cmd.Context(), media.FFprobeProber{}, path,
					time.Duration(cfg.Import.ProbeTimeout)*time.Second)
				if probeErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", path, probeErr)
					continue
				}
				if err := session.AddSample(path, meta); err != nil {
					return err
				}
			}

			candidates, err := session.Analyze()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(candidates))
			for _, sig := range candidates {
				rows = append(rows, []string{
					sig.Make, sig.Model,
					fmt.Sprintf("%dx%d", sig.Width, sig.Height),
					fmt.Sprintf("%.3f", sig.FrameRate),
					fmt.Sprintf("%.0f%%", sig.Confidence*100),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Make", "Model", "Resolution", "FPS", "Confidence"},
				rows,
				2, 3, 4,
			))

			if !saveFlag {
				fmt.Fprintln(cmd.OutOrStdout(), "re-run with --save to store these signatures")
				return nil
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			for _, sig := range candidates {
				if _, err := st.SaveSignature(cmd.Context(), sig); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d signatures\n", len(candidates))
			return nil
		},
	}

	cmd.Flags().StringVar(&nameFlag, "name", "", "Camera name the samples belong to")
	cmd.Flags().BoolVar(&saveFlag, "save", false, "Store the derived signatures")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCameraExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export learned signatures as a portable JSON document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			signatures, err := st.ListSignatures(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				file, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				if err := camera.ExportSignatures(file, signatures); err != nil {
					return err
				}
				fmt.Fprintf(out, "exported %d signatures to %s\n", len(signatures), args[0])
				return nil
			}
			return camera.ExportSignatures(out, signatures)
		},
	}
}

func newCameraImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import signatures from an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			signatures, err := camera.ImportSignatures(file)
			if err != nil {
				return err
			}

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			for _, sig := range signatures {
				if _, err := st.SaveSignature(cmd.Context(), sig); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d signatures\n", len(signatures))
			return nil
		},
	}
}
