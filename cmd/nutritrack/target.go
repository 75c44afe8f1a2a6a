package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nutritrack/internal/energy"
	"nutritrack/internal/models"
)

var (
	targetAge      int
	targetSex      string
	targetWeight   float64
	targetHeight   float64
	targetActivity string
	targetGoal     string
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Compute the daily calorie target for a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := models.DefaultProfile()
		p.Age = targetAge
		p.Sex = models.Sex(targetSex)
		p.Weight = targetWeight
		p.Height = targetHeight
		p.Activity = models.ActivityLevel(targetActivity)
		p.Goal = models.Goal(targetGoal)

		if !p.Sex.Valid() {
			return fmt.Errorf("invalid --sex %q (expected Male or Female)", targetSex)
		}
		if !p.Activity.Valid() {
			return fmt.Errorf("invalid --activity %q (expected Sedentary, Light, Moderate, Active or Very Active)", targetActivity)
		}
		if !p.Goal.Valid() {
			return fmt.Errorf("invalid --goal %q (expected Lose Weight, Maintain or Gain Muscle)", targetGoal)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "BMR: %.0f kcal\n", energy.BMR(p))
		fmt.Fprintf(cmd.OutOrStdout(), "Activity factor: %g\n", energy.ActivityFactor(p.Activity))
		fmt.Fprintf(cmd.OutOrStdout(), "Target: %d kcal\n", energy.CalculateTarget(p))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(targetCmd)
	d := models.DefaultProfile()
	targetCmd.Flags().IntVar(&targetAge, "age", d.Age, "Age in years")
	targetCmd.Flags().StringVar(&targetSex, "sex", string(d.Sex), "Male or Female")
	targetCmd.Flags().Float64Var(&targetWeight, "weight", d.Weight, "Weight in kg")
	targetCmd.Flags().Float64Var(&targetHeight, "height", d.Height, "Height in cm")
	targetCmd.Flags().StringVar(&targetActivity, "activity", string(d.Activity), "Activity level")
	targetCmd.Flags().StringVar(&targetGoal, "goal", string(d.Goal), "Lose Weight, Maintain or Gain Muscle")
}
