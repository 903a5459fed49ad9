package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/localnerve/crmsync/internal/cloud"
	"github.com/localnerve/crmsync/internal/models"
	"github.com/localnerve/crmsync/internal/services"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func relative(stamp string) string {
	if stamp == "" {
		return "never"
	}
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return stamp
	}
	return fmt.Sprintf("%s (%s)", stamp, humanize.Time(t))
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local store contents and the last sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()
				status := s.Status()
				fmt.Fprintf(out, "User:       %s\n", s.Identity().UserID())
				fmt.Fprintf(out, "Last sync:  %s\n", relative(status.LastSync))
				fmt.Fprintf(out, "State:      %s\n", status.State)
				if n, ok := s.StoreUsage(); ok {
					fmt.Fprintf(out, "Store size: %s\n", humanize.Bytes(uint64(n)))
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "%-12s  %s\n", "Collection", "Records")
				counts := []struct {
					name string
					n    int
				}{
					{models.CollectionProperties, len(s.Properties())},
					{models.CollectionClients, len(s.Clients())},
					{models.CollectionFollowups, len(s.Followups())},
					{models.CollectionSigns, len(s.Signs())},
					{models.CollectionExpenses, len(s.Expenses())},
					{models.CollectionColleagues, len(s.Colleagues())},
					{models.CollectionSales, len(s.Sales())},
					{models.CollectionActivity, len(s.Activity())},
				}
				for _, row := range counts {
					fmt.Fprintf(out, "%-12s  %s\n", row.name, humanize.Comma(int64(row.n)))
				}
				return nil
			})
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Resolve the role and run the startup sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCloud(cmd, func(ctx context.Context, s *session) error {
				status := s.Status()
				fmt.Fprintf(cmd.OutOrStdout(), "%s, owner %s, last sync %s\n",
					status.LastOutcome, s.Identity().OwnerID(), relative(status.LastSync))
				return nil
			})
		},
	}
}

func (c *cli) pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Overwrite local collections with the remote document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCloud(cmd, func(ctx context.Context, s *session) error {
				if err := s.ManualSync(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pulled %s, last sync %s\n", s.Identity().OwnerID(), relative(s.Status().LastSync))
				return nil
			})
		},
	}
}

func (c *cli) pushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push local collections to the remote document now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCloud(cmd, func(ctx context.Context, s *session) error {
				if s.Identity().IsDelegated() {
					return errors.New("delegated identities cannot push; use pending")
				}
				if err := s.Push(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed, last sync %s\n", relative(s.Status().LastSync))
				return nil
			})
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay subscribed and apply remote changes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := c.open()
			if err != nil {
				return err
			}
			defer func() { _ = s.Close(context.Background()) }()

			if err := s.InitCloud(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s as %s, Ctrl+C to stop\n", s.Identity().OwnerID(), s.Identity().Role())
			<-ctx.Done()
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the JSON backup of the local store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd, func(ctx context.Context, s *session) error {
				if len(args) == 0 {
					return s.Export(cmd.OutOrStdout())
				}
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				if err := s.Export(f); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace local collections from a JSON backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("import replaces local collections; pass --yes to confirm")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return c.withCloud(cmd, func(ctx context.Context, s *session) error {
				n, err := s.Import(f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d collections\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the destructive import")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "list <collection>",
		Short:     "Print a local collection as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(append([]string(nil), models.SyncedCollections...), models.CollectionExpenses, models.CollectionActivity),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd, func(ctx context.Context, s *session) error {
				out := cmd.OutOrStdout()
				switch args[0] {
				case models.CollectionProperties:
					return printJSON(out, s.Properties())
				case models.CollectionClients:
					return printJSON(out, s.Clients())
				case models.CollectionFollowups:
					return printJSON(out, s.Followups())
				case models.CollectionSigns:
					return printJSON(out, s.Signs())
				case models.CollectionExpenses:
					return printJSON(out, s.Expenses())
				case models.CollectionColleagues:
					return printJSON(out, s.Colleagues())
				case models.CollectionSales:
					return printJSON(out, s.Sales())
				case models.CollectionActivity:
					return printJSON(out, s.Activity())
				case models.CollectionSettings:
					return printJSON(out, s.Settings())
				}
				return fmt.Errorf("unknown collection %q", args[0])
			})
		},
	}
}

// decodeAndSave decodes raw into the record type named by kind and saves it.
func decodeAndSave(s *session, kind string, raw []byte) (any, error) {
	switch kind {
	case "property":
		var p models.Property
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return s.SaveProperty(&p)
	case "client":
		var v models.Client
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return s.SaveClient(&v)
	case "followup":
		var v models.Followup
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return s.SaveFollowup(&v)
	case "sign":
		var v models.Sign
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return s.SaveSign(&v)
	case "expense":
		var v models.Expense
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return s.SaveExpense(&v)
	case "colleague":
		var v models.Colleague
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return s.SaveColleague(&v)
	}
	return nil, fmt.Errorf("unknown record kind %q", kind)
}

func recordArg(data string) ([]byte, error) {
	if data == "" || data == "-" {
		return io.ReadAll(os.Stdin)
	}
	if strings.HasPrefix(data, "@") {
		return os.ReadFile(strings.TrimPrefix(data, "@"))
	}
	return []byte(data), nil
}

func (c *cli) addCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "add <property|client|followup|sign|expense|colleague>",
		Short: "Save a record and push it after the debounce window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := recordArg(data)
			if err != nil {
				return err
			}
			return c.withCloud(cmd, func(ctx context.Context, s *session) error {
				saved, err := decodeAndSave(s, args[0], raw)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	cmd.Flags().StringVar(&data, "json", "", "record JSON, @file, or - for stdin")
	return cmd
}

func (c *cli) pendingCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "pending <property|client|sign>",
		Short: "Stage a record for the owner's approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := recordArg(data)
			if err != nil {
				return err
			}
			var record map[string]any
			if err := json.Unmarshal(raw, &record); err != nil {
				return err
			}
			return c.withCloud(cmd, func(ctx context.Context, s *session) error {
				entry, err := s.SavePending(ctx, args[0], record)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entry)
			})
		},
	}
	cmd.Flags().StringVar(&data, "json", "", "record JSON, @file, or - for stdin")
	return cmd
}

func (c *cli) roleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role",
		Short: "Resolve and print the signed-in identity's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd, func(ctx context.Context, s *session) error {
				role, err := s.InitUserRole(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s works on %s as %s\n", s.Identity().UserID(), s.Identity().OwnerID(), role)
				return nil
			})
		},
	}
}

func (c *cli) teamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage the signed-in owner's roster",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List roster members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd, func(ctx context.Context, s *session) error {
				members, err := s.remote.Roster(ctx, s.Identity().UserID())
				if err != nil {
					return err
				}
				sort.Slice(members, func(i, j int) bool { return members[i].MemberID < members[j].MemberID })
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-24s  %-10s  %s\n", "Member", "Role", "Name")
				for _, m := range members {
					fmt.Fprintf(out, "%-24s  %-10s  %s\n", m.MemberID, m.Role, m.Name)
				}
				return nil
			})
		},
	})

	var name string
	add := &cobra.Command{
		Use:   "add <member> <secretary|captador>",
		Short: "Add a member or change its role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd, func(ctx context.Context, s *session) error {
				tm, ok := s.remote.(cloud.TeamManager)
				if !ok {
					return errors.New("remote does not manage rosters")
				}
				return tm.SetTeamMember(ctx, models.TeamMember{
					OwnerID:  s.Identity().UserID(),
					MemberID: args[0],
					Role:     models.Role(args[1]),
					Name:     name,
				})
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name of the member")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <member>",
		Short: "Remove a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withLocal(cmd, func(ctx context.Context, s *session) error {
				tm, ok := s.remote.(cloud.TeamManager)
				if !ok {
					return errors.New("remote does not manage rosters")
				}
				return tm.RemoveTeamMember(ctx, s.Identity().UserID(), args[0])
			})
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	var uid, name, secret string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token (development servers)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("AUTH_SECRET")
			}
			if uid == "" || secret == "" {
				return errors.New("--uid and --secret (or AUTH_SECRET) are required")
			}
			token, err := services.IssueToken(secret, uid, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "subject user id")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
