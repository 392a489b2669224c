package cli

import (
	"errors"
	"fmt"
	"strconv"

	business "github.com/goliatone/go-business"
	"github.com/goliatone/go-business/internal/movies"
	"github.com/goliatone/go-business/pkg/softdelete"
	"github.com/spf13/cobra"
)

// errNotFound is returned when a command addresses a missing movie.
var errNotFound = errors.New("movie not found")

func newAddCommand(opts *RootOptions) *cobra.Command {
	var (
		title    string
		released string
		genre    string
		price    float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a movie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			movie := &movies.Movie{Title: title, Genre: genre, Price: price}
			if released != "" {
				date, err := movies.ParseDate(released)
				if err != nil {
					return fmt.Errorf("invalid --released %q: %w", released, err)
				}
				movie.ReleaseDate = date
			}
			return opts.withApp(cmd, func(a *app) error {
				ok, err := a.movies.Save(cmd.Context(), movie, a.params)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("save was rejected")
				}
				return opts.printMovies(cmd, []*movies.Movie{movie})
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "movie title")
	cmd.Flags().StringVar(&released, "released", "", "release date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&genre, "genre", "", "genre")
	cmd.Flags().Float64Var(&price, "price", 0, "price")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newListCommand(opts *RootOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List movies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch softdelete.Mode(mode) {
			case softdelete.ModeNotDeleted, softdelete.ModeOnlyDeleted, softdelete.ModeAll:
			default:
				return fmt.Errorf("invalid --mode %q", mode)
			}
			return opts.withApp(cmd, func(a *app) error {
				params := business.SetDeep(a.params.Clone(), softdelete.ParamMode, mode)
				list, err := a.movies.FindAll(cmd.Context(), "all", params)
				if err != nil {
					return err
				}
				return opts.printMovies(cmd, list)
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(softdelete.ModeNotDeleted), "not-deleted|only-deleted|all")

	return cmd
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	var (
		slug string
		id   int64
	)

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one movie by slug or id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (slug == "") == (id == 0) {
				return errors.New("exactly one of --slug or --id is required")
			}
			return opts.withApp(cmd, func(a *app) error {
				var (
					movie *movies.Movie
					found bool
					err   error
				)
				if slug != "" {
					movie, found, err = a.movies.BySlug(cmd.Context(), slug, a.params)
				} else {
					movie, found, err = a.movies.FindByID(cmd.Context(), id, a.params)
				}
				if err != nil {
					return err
				}
				if !found {
					return errNotFound
				}
				return opts.printMovies(cmd, []*movies.Movie{movie})
			})
		},
	}

	cmd.Flags().StringVar(&slug, "slug", "", "movie slug")
	cmd.Flags().Int64Var(&id, "id", 0, "movie id")

	return cmd
}

func newSearchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Find movies whose title contains text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app) error {
				list, err := a.movies.Search(cmd.Context(), args[0], a.params)
				if err != nil {
					return err
				}
				return opts.printMovies(cmd, list)
			})
		},
	}
}

func newWhereCommand(opts *RootOptions) *cobra.Command {
	var args map[string]string

	cmd := &cobra.Command{
		Use:   "where <expression>",
		Short: "Find movies matching an expression",
		Long: `Find movies matching an expression evaluated by the configured engine.
Record fields are available by name (title, genre, price, release_date) and
--arg values through args, e.g.

  moviectl where 'genre == "Drama" && price < args.max' --arg max=10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			return opts.withApp(cmd, func(a *app) error {
				list, err := a.movies.Where(cmd.Context(), positional[0], parseArgs(args), a.params)
				if err != nil {
					return err
				}
				return opts.printMovies(cmd, list)
			})
		},
	}

	cmd.Flags().StringToStringVar(&args, "arg", nil, "expression argument as key=value (repeatable)")

	return cmd
}

func newDeleteCommand(opts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Move a movie to the trash, or remove it with --force",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				if force {
					ok, err := a.movies.ForceDelete(cmd.Context(), id, a.params)
					if err != nil {
						return err
					}
					if !ok {
						return errNotFound
					}
					fmt.Fprintf(cmd.OutOrStdout(), "movie %d removed\n", id)
					return nil
				}

				movie, found, err := a.movies.FindByID(cmd.Context(), id, a.params)
				if err != nil {
					return err
				}
				if !found {
					return errNotFound
				}
				if _, err := a.movies.Delete(cmd.Context(), movie, a.params); err != nil {
					return err
				}
				if !softdelete.IsDeleted(movie) {
					return errors.New("delete was rejected")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "movie %d moved to trash\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "remove the row instead of marking it deleted")

	return cmd
}

func newRestoreCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a movie from the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app) error {
				ok, err := a.movies.Restore(cmd.Context(), id, a.params)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no deleted movie with id %d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "movie %d restored\n", id)
				return nil
			})
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// parseArgs turns numeric and boolean values into numbers and booleans so
// expressions can compare them directly.
func parseArgs(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = n
			continue
		}
		if b, err := strconv.ParseBool(value); err == nil {
			out[key] = b
			continue
		}
		out[key] = value
	}
	return out
}
