package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

var (
	personasJSON bool

	profileName   string
	avatarPersona string
	projectDesc   string
	projectAgents string
	projectsJSON  bool
	projectDetach bool
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the council's advisors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if personasJSON {
			return printJSON(cmd.OutOrStdout(), persona.All())
		}
		w := cmd.OutOrStdout()
		for i, p := range persona.All() {
			fmt.Fprintf(w, "  %d. %-8s %-8s %s\n", i+1, p.ID, p.Name, p.Description)
			fmt.Fprintf(w, "     %s\n", p.Focus)
		}
		fmt.Fprintf(w, "\n  Default council: %s\n", strings.Join(persona.DefaultCouncil, ", "))
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or change the user profile and advisor avatars",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the user profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.UserProfile()
		if err != nil {
			return err
		}
		customs, err := s.AgentCustoms()
		if err != nil {
			return err
		}
		if personasJSON {
			return printJSON(cmd.OutOrStdout(), struct {
				User    db.UserProfile            `json:"user"`
				Customs map[string]db.AgentCustom `json:"agentCustoms"`
			}{p, customs})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "  name:   %s\n", p.Name)
		fmt.Fprintf(w, "  avatar: %s\n", describeAvatar(p.Avatar))
		fmt.Fprintf(w, "  prompts address: %s\n", cfg.User.Name)
		for _, id := range persona.CanonicalOrder {
			if c, ok := customs[id]; ok && c.Avatar != "" {
				fmt.Fprintf(w, "  %s avatar: %s\n", persona.Name(id), describeAvatar(c.Avatar))
			}
		}
		return nil
	},
}

// describeAvatar summarizes an avatar without dumping a data URI
func describeAvatar(a string) string {
	switch {
	case a == "":
		return "(none)"
	case strings.HasPrefix(a, "data:"):
		kind, _, _ := strings.Cut(strings.TrimPrefix(a, "data:"), ";")
		return fmt.Sprintf("embedded %s, %d bytes", kind, len(a))
	}
	return a
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the user's display name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(profileName)
		if name == "" {
			return fmt.Errorf("--name is required")
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.UserProfile()
		if err != nil {
			return err
		}
		p.Name = name
		if err := s.SaveUserProfile(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[profile] Name set to %s\n", name)
		return nil
	},
}

var profileAvatarCmd = &cobra.Command{
	Use:   "avatar <image-file|url>",
	Short: "Set the user's avatar, or an advisor's with --persona",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		avatar, err := loadAvatar(args[0])
		if err != nil {
			return err
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if avatarPersona != "" {
			ids, err := persona.ParseTargets(avatarPersona)
			if err != nil {
				return err
			}
			if len(ids) != 1 {
				return fmt.Errorf("--persona takes a single advisor")
			}
			if err := s.SaveAgentCustom(ids[0], db.AgentCustom{Avatar: avatar}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[profile] Avatar of %s updated\n", persona.Name(ids[0]))
			return nil
		}

		p, err := s.UserProfile()
		if err != nil {
			return err
		}
		p.Avatar = avatar
		if err := s.SaveUserProfile(p); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "[profile] Avatar updated")
		return nil
	},
}

// loadAvatar accepts an http(s) URL as is, or reads an image file into a data URI
func loadAvatar(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	a, err := readAttachment(ref)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(a.FileType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", ref, a.FileType)
	}
	return a.Base64, nil
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects: groups of threads with default advisors",
	Args:  cobra.NoArgs,
	RunE:  listProjects,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  listProjects,
}

func listProjects(cmd *cobra.Command, args []string) error {
	s, err := OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	projects, err := s.Projects()
	if err != nil {
		return err
	}
	if projectsJSON {
		if projects == nil {
			projects = []db.Project{}
		}
		return printJSON(cmd.OutOrStdout(), projects)
	}
	w := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects. Create one with `qg projects add <title>`.")
		return nil
	}
	threads, err := s.Threads()
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, t := range threads {
		counts[t.ProjectID]++
	}
	for _, p := range projects {
		agents := "default council"
		if len(p.DefaultAgents) > 0 {
			agents = strings.Join(p.DefaultAgents, ",")
		}
		fmt.Fprintf(w, "  %s  %-30s %3d threads  advisors: %s\n", truncID(p.ID), truncTitle(p.Title, 30), counts[p.ID], agents)
	}
	return nil
}

var projectsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.TrimSpace(strings.Join(args, " "))
		if title == "" {
			return fmt.Errorf("title cannot be blank")
		}
		var agents []string
		if projectAgents != "" {
			var err error
			if agents, err = persona.ParseTargets(projectAgents); err != nil {
				return err
			}
			agents = persona.Order(agents)
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		p := db.Project{
			ID:            db.NewID(),
			Title:         title,
			Description:   projectDesc,
			DefaultAgents: agents,
			CreatedAt:     time.Now().UnixMilli(),
		}
		if err := s.SaveProject(p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[project] Created %s (%s)\n", p.Title, p.ID)
		return nil
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project; its threads are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := resolveProject(s, args[0])
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("Delete project %q? Its threads are kept.", p.Title)) {
			fmt.Fprintln(cmd.OutOrStdout(), "[project] Aborted")
			return nil
		}
		if err := s.DeleteProject(p.ID); err != nil {
			return err
		}
		detached := 0
		if projectDetach {
			threads, err := s.Threads()
			if err != nil {
				return err
			}
			for _, t := range threads {
				if t.ProjectID != p.ID {
					continue
				}
				t.ProjectID = ""
				if err := s.SaveThread(t); err != nil {
					return err
				}
				detached++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[project] Deleted %s", p.Title)
		if projectDetach {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d threads detached)", detached)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

// resolveProject finds a project by ID, ID prefix or case-insensitive title
func resolveProject(s *db.Store, ref string) (*db.Project, error) {
	if p, err := s.GetProject(ref); err == nil {
		return p, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	projects, err := s.Projects()
	if err != nil {
		return nil, err
	}
	var matches []db.Project
	for _, p := range projects {
		if strings.EqualFold(p.Title, ref) || (len(ref) >= 6 && strings.HasPrefix(p.ID, ref)) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("project not found: %s", ref)
	case 1:
		return &matches[0], nil
	}
	lines := make([]string, len(matches))
	for i, p := range matches {
		lines[i] = fmt.Sprintf("  %s %s", truncID(p.ID), p.Title)
	}
	return nil, fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a project ID instead.",
		ref, len(matches), joinLines(lines))
}

func init() {
	personasCmd.Flags().BoolVar(&personasJSON, "json", false, "Output as JSON")

	profileCmd.PersistentFlags().BoolVar(&personasJSON, "json", false, "Output as JSON")
	profileSetCmd.Flags().StringVar(&profileName, "name", "", "Display name")
	profileAvatarCmd.Flags().StringVar(&avatarPersona, "persona", "", "Set this advisor's avatar instead")
	profileCmd.AddCommand(profileShowCmd, profileSetCmd, profileAvatarCmd)

	projectsCmd.PersistentFlags().BoolVar(&projectsJSON, "json", false, "Output as JSON")
	projectsAddCmd.Flags().StringVar(&projectDesc, "description", "", "Project description")
	projectsAddCmd.Flags().StringVar(&projectAgents, "advisors", "", "Comma-separated default advisors (default: the council)")
	projectsDeleteCmd.Flags().BoolVar(&projectDetach, "detach", false, "Also clear the project from its threads")
	projectsCmd.AddCommand(projectsListCmd, projectsAddCmd, projectsDeleteCmd)

	rootCmd.AddCommand(personasCmd, profileCmd, projectsCmd)
}
