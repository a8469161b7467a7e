package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupRemoveCmd)
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupShowCmd)
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage named recipient groups",
	Long:  `A group is a named set of recipient identifiers, expanded one level at resolve time.`,
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name> <member> [member...]",
	Short: "Create or replace a group",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGroupAdd,
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupRemove,
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all groups",
	RunE:  runGroupList,
}

var groupShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a single group's members",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupShow,
}

func runGroupAdd(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	name, members := args[0], args[1:]
	g, err := st.PutGroup(name, members)
	if err != nil {
		return err
	}
	fmt.Printf("Group %q now has %d member(s): %s\n", g.Name, len(g.Members), strings.Join(g.Members, ", "))
	return nil
}

func runGroupRemove(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	removed, err := st.RemoveGroup(args[0])
	if err != nil {
		return err
	}
	if !removed {
		fmt.Printf("No group named %q\n", args[0])
		return nil
	}
	fmt.Printf("Removed group %q\n", args[0])
	return nil
}

func runGroupList(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	groups, err := st.LoadGroups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No groups defined")
		return nil
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		g := groups[name]
		fmt.Printf("%s: %s\n", g.Name, strings.Join(g.Members, ", "))
	}
	return nil
}

func runGroupShow(cmd *cobra.Command, args []string) error {
	_, _, st, err := buildOrchestrator()
	if err != nil {
		return err
	}

	g, ok, err := st.GetGroup(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no group named %q", args[0])
	}
	for _, m := range g.Members {
		fmt.Println(m)
	}
	return nil
}
