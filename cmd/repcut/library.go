package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/heimdex/repcut/internal/config"
	"github.com/heimdex/repcut/internal/library"
	"github.com/heimdex/repcut/internal/logging"
	"github.com/heimdex/repcut/internal/timeline"
)

var libraryQuery library.Query

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Browse and edit saved exercises",
}

var libraryListCmd = &cobra.Command{
	Use:     "list",
	Short:   "Search the exercise library",
	Example: `  repcut library list --search squat --muscle Legs --page 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := libraryClient()
		if err != nil {
			return err
		}
		page, err := client.Exercises(cmd.Context(), libraryQuery)
		if err != nil {
			return err
		}
		printExercises(os.Stdout, page)
		return nil
	},
}

var (
	exerciseName      string
	exerciseMuscles   []string
	exerciseEquipment []string
)

var libraryEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Rename or retag an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseExerciseID(args[0])
		if err != nil {
			return err
		}
		client, err := libraryClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		ex, err := client.Exercise(ctx, id)
		if err != nil {
			return err
		}

		upd := library.ExerciseUpdate{Name: ex.Name, MuscleGroups: ex.MuscleGroups, Equipment: ex.Equipment}
		if cmd.Flags().Changed("name") {
			upd.Name = exerciseName
		}
		if cmd.Flags().Changed("muscle") {
			upd.MuscleGroups = exerciseMuscles
		}
		if cmd.Flags().Changed("equipment") {
			upd.Equipment = exerciseEquipment
		}
		if err := client.UpdateExercise(ctx, id, upd); err != nil {
			return err
		}
		fmt.Printf("Updated exercise %d: %s\n", id, strings.TrimSpace(upd.Name))
		return nil
	},
}

var deleteYes bool

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an exercise and its clip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseExerciseID(args[0])
		if err != nil {
			return err
		}
		if !deleteYes {
			return errors.New("refusing to delete without --yes")
		}
		client, err := libraryClient()
		if err != nil {
			return err
		}
		if err := client.DeleteExercise(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted exercise %d\n", id)
		return nil
	},
}

func init() {
	f := libraryListCmd.Flags()
	f.StringVar(&libraryQuery.Search, "search", "", "match exercise names")
	f.StringSliceVar(&libraryQuery.MuscleGroups, "muscle", nil, "filter by muscle group")
	f.StringSliceVar(&libraryQuery.Equipment, "equipment", nil, "filter by equipment")
	f.IntVar(&libraryQuery.Page, "page", 1, "page number")
	f.IntVar(&libraryQuery.PerPage, "per-page", library.DefaultPerPage, "results per page")
	f.StringVar(&libraryQuery.SortBy, "sort", "created_at", "created_at, duration or exercise_name")
	f.BoolVar(&libraryQuery.Descending, "desc", true, "sort descending")

	ef := libraryEditCmd.Flags()
	ef.StringVar(&exerciseName, "name", "", "new exercise name")
	ef.StringSliceVar(&exerciseMuscles, "muscle", nil, "replace muscle groups")
	ef.StringSliceVar(&exerciseEquipment, "equipment", nil, "replace equipment")

	libraryDeleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "confirm the deletion")

	libraryCmd.AddCommand(libraryListCmd, libraryEditCmd, libraryDeleteCmd)
	rootCmd.AddCommand(libraryCmd)
}

func libraryClient() (*library.Client, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.BackendURL() == "" {
		return nil, errors.New("no backend configured (set REPCUT_BACKEND_URL)")
	}
	return library.NewClient(cfg.BackendURL(), cfg.BackendToken(), logging.Discard()), nil
}

func parseExerciseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid exercise id %q", s)
	}
	return id, nil
}

func printExercises(w io.Writer, page *library.ExercisePage) {
	rows := make([][]string, 0, len(page.Exercises))
	for _, ex := range page.Exercises {
		rows = append(rows, []string{
			strconv.FormatInt(ex.ID, 10),
			ex.Name,
			timeline.FormatTime(ex.Duration),
			strings.Join(ex.MuscleGroups, ", "),
			strings.Join(ex.Equipment, ", "),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "LENGTH", "MUSCLE GROUPS", "EQUIPMENT").
		Rows(rows...)
	fmt.Fprintln(w, t.Render())

	p := page.Pagination
	fmt.Fprintf(w, "page %d of %d (%d exercises)\n", p.Page, max(p.TotalPages, 1), p.TotalCount)
}
