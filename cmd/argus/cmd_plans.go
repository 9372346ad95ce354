package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/telescopiosnaescola/argus/internal/planner"
	"github.com/telescopiosnaescola/argus/internal/timesync"
	"github.com/telescopiosnaescola/argus/pkg/api"
	"github.com/telescopiosnaescola/argus/pkg/astro"
)

var (
	planName      string
	planObject    string
	planCoords    string
	planFilters   []string
	planFrameMode string
	planExpTime   float64
	planStart     string
	planInMinutes int
	planObserve   bool

	checkNow bool
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage observation plans",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rootCmd.PersistentPreRunE != nil {
			if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
				return err
			}
		}
		return portal.requireLogin()
	},
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending observation plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		plans, err := portal.client.FetchPlans(cmd.Context())
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			fmt.Println("No pending plans")
			return nil
		}
		printPlans(plans, false)
		return nil
	},
}

var plansCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new observation plan",
	Long: `Creates an observation plan for a target.

The target is either a presaved object name (--object) or equatorial
coordinates: --coords takes "RA  DEC" in decimal degrees separated by
two spaces, the same format the sky map uses.

The start time is --start in local portal time (2006-01-02T15:04) or
--in minutes from the server clock. With --observe-now the plan is
checked against the realtime channel and executed immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := buildPlanForm(cmd)
		if err != nil {
			return err
		}

		submitter := planner.NewSubmitter(portal.client, portal.logger)

		if planObserve {
			if err := runVisibilityGate(cmd, submitter, form); err != nil {
				return err
			}
		}

		resp, err := submitter.Save(cmd.Context(), form)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("server rejected plan: %s", resp.Message)
		}
		fmt.Println(resp.Message)

		if planObserve {
			planID, err := findCreatedPlan(cmd, form)
			if err != nil {
				return fmt.Errorf("plan saved but could not be located for execution: %w", err)
			}
			execResp, err := submitter.ObserveNow(cmd.Context(), form, planID)
			if err != nil {
				return err
			}
			if !execResp.OK() {
				return fmt.Errorf("execution refused: %s", execResp.Message)
			}
			fmt.Println(execResp.Message)
		}
		return nil
	},
}

var plansDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a pending plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		resp, err := portal.client.DeletePlan(cmd.Context(), planID)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("delete refused: %s", resp.Message)
		}
		fmt.Println(resp.Message)
		return nil
	},
}

var plansCheckCmd = &cobra.Command{
	Use:   "check <plan-id>",
	Short: "Ask the portal whether a plan is observable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		resp, err := portal.client.CheckPlanOK(cmd.Context(), planID, checkNow)
		if err != nil {
			return err
		}
		if resp.OK() {
			fmt.Println("Observable:", resp.Message)
			return nil
		}
		fmt.Println("Not observable:", resp.Message)
		return nil
	},
}

var plansObserveCmd = &cobra.Command{
	Use:   "observe <plan-id>",
	Short: "Execute a saved plan immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		resp, err := portal.client.ExecutePlan(cmd.Context(), planID)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("execution refused: %s", resp.Message)
		}
		fmt.Println(resp.Message)
		return nil
	},
}

var plansEditCmd = &cobra.Command{
	Use:   "edit <plan-id>",
	Short: "Replace a pending plan with new values",
	Long: `Replaces a plan: the new version is created first and the old
one deleted afterwards, so a failure never loses the plan. If the old
plan cannot be deleted the new one is rolled back.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		form, err := buildPlanForm(cmd)
		if err != nil {
			return err
		}

		submitter := planner.NewSubmitter(portal.client, portal.logger)
		if err := submitter.Replace(cmd.Context(), form, planID); err != nil {
			return err
		}
		fmt.Printf("Plan %d replaced\n", planID)
		return nil
	},
}

var plansTargetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List presaved objects currently observable",
	RunE: func(cmd *cobra.Command, args []string) error {
		objects, err := portal.client.GetObservablePresavedList(cmd.Context())
		if err != nil {
			return err
		}
		if len(objects) == 0 {
			fmt.Println("No presaved objects are observable right now")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tRA\tDEC")
		for _, obj := range objects {
			fmt.Fprintf(w, "%s\t%s\t%s\n", obj.Name, astro.FormatRA(obj.RA), astro.FormatDEC(obj.DEC))
		}
		return w.Flush()
	},
}

// buildPlanForm assembles and validates the plan form from the shared
// target/exposure flags.
func buildPlanForm(cmd *cobra.Command) (*planner.Form, error) {
	form := &planner.Form{
		Name:       planName,
		ObjectName: planObject,
		Filters:    planFilters,
		FrameMode:  planFrameMode,
		ExpTime:    planExpTime,
	}

	if planCoords != "" {
		ra, dec, err := astro.ParseCoordinateDegrees(planCoords)
		if err != nil {
			return nil, err
		}
		form.RA = astro.FormatRA(ra)
		form.DEC = astro.FormatDEC(dec)
	}

	switch {
	case planStart != "":
		if _, err := timesync.Parse(planStart); err != nil {
			return nil, fmt.Errorf("invalid --start %q, expected %s", planStart, timesync.DateTimeLocal)
		}
		form.StartTime = planStart
	case planInMinutes > 0:
		form.StartTime = timesync.Format(portal.clock.FutureTime(cmd.Context(), planInMinutes))
	default:
		return nil, fmt.Errorf("either --start or --in is required")
	}

	if err := form.Validate(); err != nil {
		return nil, err
	}
	return form, nil
}

// runVisibilityGate checks the target over the realtime channel and
// feeds the verdict into the submitter.
func runVisibilityGate(cmd *cobra.Command, submitter *planner.Submitter, form *planner.Form) error {
	channel, err := portal.realtimeChannel(cmd)
	if err != nil {
		return err
	}

	siteLat, err := portal.info.SiteLatitude(cmd.Context())
	if err != nil {
		return err
	}
	siteLon, err := portal.info.SiteLongitude(cmd.Context())
	if err != nil {
		return err
	}

	ra, err := strconv.ParseFloat(form.RA, 64)
	if err != nil {
		return fmt.Errorf("observe-now needs explicit coordinates, not an object name")
	}
	dec, _ := strconv.ParseFloat(form.DEC, 64)

	checker := planner.NewChecker(channel, portal.logger)
	result, err := checker.Check(cmd.Context(), ra, dec, form.StartTime, siteLat, siteLon)
	if err != nil {
		return err
	}
	if result.Hint != "" {
		fmt.Println("Note:", result.Hint)
	}

	submitter.SetObservableNow(result.Now == planner.CheckApproved)
	if result.Now != planner.CheckApproved {
		return fmt.Errorf("target is not currently observable")
	}
	return nil
}

// findCreatedPlan locates the plan just saved, newest match first.
func findCreatedPlan(cmd *cobra.Command, form *planner.Form) (int, error) {
	plans, err := portal.client.FetchPlans(cmd.Context())
	if err != nil {
		return 0, err
	}
	for i := len(plans) - 1; i >= 0; i-- {
		if plans[i].Name == form.Name && plans[i].StartTime == form.StartTime {
			return plans[i].ID, nil
		}
	}
	return 0, fmt.Errorf("plan %q not found after save", form.Name)
}

func printPlans(plans []api.ObservationPlan, executed bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if executed {
		fmt.Fprintln(w, "ID\tNAME\tTARGET\tEXECUTED AT\tOUTPUTS")
	} else {
		fmt.Fprintln(w, "ID\tNAME\tTARGET\tSTART\tFILTERS\tEXPTIME")
	}
	for _, p := range plans {
		target := p.ObjectName
		if target == "" {
			target = astro.SexagesimalSimplified(p.RA, p.DEC)
		}
		if executed {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				p.ID, p.Name, target, p.ExecutedAt, strings.Join(p.OutputFiles(), ", "))
		} else {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.1fs\n",
				p.ID, p.Name, target, p.StartTime, p.Filters, p.ExpTime)
		}
	}
	_ = w.Flush()
}

func addPlanFormFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&planName, "name", "", "plan name")
	cmd.Flags().StringVar(&planObject, "object", "", "presaved object name")
	cmd.Flags().StringVar(&planCoords, "coords", "", `target coordinates as "RA  DEC" in decimal degrees`)
	cmd.Flags().StringSliceVar(&planFilters, "filters", nil, "filters to expose, e.g. R,G,B")
	cmd.Flags().StringVar(&planFrameMode, "frame", "Light", "frame mode")
	cmd.Flags().Float64Var(&planExpTime, "exptime", 0, "exposure time in seconds per filter")
	cmd.Flags().StringVar(&planStart, "start", "", "start time, format "+timesync.DateTimeLocal)
	cmd.Flags().IntVar(&planInMinutes, "in", 0, "start in N minutes of server time")
}

func init() {
	addPlanFormFlags(plansCreateCmd)
	plansCreateCmd.Flags().BoolVar(&planObserve, "observe-now", false, "check visibility and execute immediately after saving")
	addPlanFormFlags(plansEditCmd)

	plansCheckCmd.Flags().BoolVar(&checkNow, "now", false, "check against the current time instead of the plan start time")

	plansCmd.AddCommand(plansListCmd, plansCreateCmd, plansDeleteCmd, plansCheckCmd, plansObserveCmd, plansEditCmd, plansTargetsCmd)
	rootCmd.AddCommand(plansCmd)
}
