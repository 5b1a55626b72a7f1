// Command communityctl is a headless driver for the Xai-Community API:
// it logs in, keeps the session alive through the session manager, and
// exposes the site's surfaces (boards, posts, comments, reactions,
// services, tips, notifications) as subcommands.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/keepselvesreal/xai-community-go/community"
	"github.com/keepselvesreal/xai-community-go/internal/config"
	"github.com/keepselvesreal/xai-community-go/internal/logging"
	"github.com/keepselvesreal/xai-community-go/internal/version"
	"github.com/keepselvesreal/xai-community-go/session"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	if args[0] == "version" {
		info := version.Get()
		fmt.Printf("communityctl %s (commit %s, built %s, %s)\n",
			info.Version, info.Commit, info.BuildTime, info.GoVersion)
		return
	}

	cfg := setupConfig()
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args[0], args[1:]); err != nil {
		slog.Error("Command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config) (session.Store, error) {
	switch cfg.SessionStore {
	case "redis":
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		return session.NewRedisStore(goredis.NewClient(opts), "xai:session:default"), nil
	default:
		var storeOpts []session.FileStoreOption
		if cfg.SessionKey != "" {
			storeOpts = append(storeOpts, session.WithEncryption(cfg.SessionKey))
		}
		return session.NewFileStore(cfg.SessionFile, storeOpts...)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	store, err := setupStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up session store: %w", err)
	}

	client, err := community.NewClient(cfg.APIURL,
		community.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		community.WithCacheTTL(cfg.CacheTTL),
		community.WithRateLimit(cfg.RequestsPerSecond),
	)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}
	defer client.Close()

	manager := session.NewManager(client.Auth, store, session.Config{
		RefreshSkew:   cfg.SessionRefreshSkew,
		CheckInterval: cfg.SessionCheckEvery,
		MaxSessionAge: cfg.SessionMaxAge,
		MaxRefreshes:  cfg.SessionMaxRefresh,
	})
	client.SetTokenSource(manager)
	manager.OnLogout(func(reason session.Reason) {
		if reason != session.ReasonUser {
			fmt.Fprintf(os.Stderr, "session ended: %s\n", reason)
		}
	})

	if _, err := manager.Restore(ctx); err != nil {
		slog.Warn("Could not restore stored session", "error", err)
	}

	manager.Start()
	defer manager.Stop()

	switch command {
	case "login":
		return cmdLogin(ctx, client, manager, args)
	case "logout":
		return cmdLogout(ctx, manager)
	case "whoami":
		return cmdWhoami(ctx, client)
	case "boards":
		return cmdBoards(ctx, client)
	case "posts":
		return cmdPosts(ctx, client, args)
	case "get":
		return cmdGet(ctx, client, args)
	case "post":
		return cmdCreatePost(ctx, client, args)
	case "comment":
		return cmdComment(ctx, client, args)
	case "react":
		return cmdReact(ctx, client, args)
	case "search":
		return cmdSearch(ctx, client, args)
	case "services":
		return cmdServices(ctx, client, args)
	case "tips":
		return cmdTips(ctx, client)
	case "notifications":
		return cmdNotifications(ctx, client, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func cmdLogin(ctx context.Context, client *community.Client, manager *session.Manager, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or set XAI_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("XAI_PASSWORD")
	}
	if *email == "" || *password == "" {
		return errors.New("login requires -email and -password (or XAI_PASSWORD)")
	}

	result, err := client.Auth.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if _, err := manager.Establish(ctx, result.Grant); err != nil {
		return err
	}

	fmt.Printf("logged in as %s (%s)\n", result.User.Nickname, result.User.Email)
	return nil
}

func cmdLogout(ctx context.Context, manager *session.Manager) error {
	if err := manager.Logout(ctx); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			fmt.Println("not logged in")
			return nil
		}
		return err
	}
	fmt.Println("logged out")
	return nil
}

func cmdWhoami(ctx context.Context, client *community.Client) error {
	user, err := client.Users.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s <%s>", user.Nickname, user.Email)
	if user.Apartment != "" {
		fmt.Printf(" apartment %s", user.Apartment)
	}
	fmt.Println()
	return nil
}

func cmdBoards(ctx context.Context, client *community.Client) error {
	boards, err := client.Boards.List(ctx)
	if err != nil {
		return err
	}
	for _, b := range boards {
		fmt.Printf("%-12s %s (%d posts)\n", b.Slug, b.Name, b.PostCount)
	}
	return nil
}

func cmdPosts(ctx context.Context, client *community.Client, args []string) error {
	fs := flag.NewFlagSet("posts", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 20, "page size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: posts [-page N] [-size N] <board>")
	}

	result, err := client.Posts.List(ctx, fs.Arg(0), community.ListOptions{Page: *page, Size: *size})
	if err != nil {
		return err
	}
	for _, p := range result.Items {
		fmt.Printf("%s  %-40s  by %s  (+%d/-%d, %d comments)\n",
			p.ID, truncate(p.Title, 40), p.AuthorName, p.Likes, p.Dislikes, p.CommentCount)
	}
	fmt.Printf("page %d of %d posts\n", result.Page, result.Total)
	return nil
}

func cmdGet(ctx context.Context, client *community.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: get <post-id>")
	}

	post, err := client.Posts.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("[%s] %s\nby %s at %s  (+%d/-%d, %d bookmarks)\n\n%s\n",
		post.BoardSlug, post.Title, post.AuthorName,
		post.CreatedAt.Format("2006-01-02 15:04"),
		post.Likes, post.Dislikes, post.Bookmarks, post.Content)

	comments, err := client.Comments.List(ctx, post.ID, community.ListOptions{})
	if err != nil {
		return err
	}
	for _, c := range comments.Items {
		indent := ""
		if c.ParentID != "" {
			indent = "    "
		}
		fmt.Printf("%s- %s: %s\n", indent, c.AuthorName, c.Content)
	}
	return nil
}

func cmdCreatePost(ctx context.Context, client *community.Client, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: post <board> <title> <content...>")
	}

	post, err := client.Posts.Create(ctx, args[0], community.PostDraft{
		Title:   args[1],
		Content: strings.Join(args[2:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Printf("created post %s on %s\n", post.ID, post.BoardSlug)
	return nil
}

func cmdComment(ctx context.Context, client *community.Client, args []string) error {
	fs := flag.NewFlagSet("comment", flag.ContinueOnError)
	parent := fs.String("reply-to", "", "parent comment ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: comment [-reply-to ID] <post-id> <content...>")
	}

	comment, err := client.Comments.Create(ctx, fs.Arg(0), community.CommentDraft{
		Content:  strings.Join(fs.Args()[1:], " "),
		ParentID: *parent,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created comment %s\n", comment.ID)
	return nil
}

func cmdReact(ctx context.Context, client *community.Client, args []string) error {
	fs := flag.NewFlagSet("react", flag.ContinueOnError)
	onComment := fs.Bool("comment", false, "react to a comment instead of a post")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: react [-comment] <id> <like|dislike|bookmark>")
	}

	kind := community.ReactionKind(fs.Arg(1))
	var state community.ReactionState
	var err error
	if *onComment {
		state, err = client.Reactions.ToggleComment(ctx, fs.Arg(0), kind)
	} else {
		state, err = client.Reactions.TogglePost(ctx, fs.Arg(0), kind)
	}
	if err != nil {
		return err
	}

	verb := "removed"
	if state.Active {
		verb = "added"
	}
	fmt.Printf("%s %s (+%d/-%d, %d bookmarks)\n", verb, state.Kind, state.Likes, state.Dislikes, state.Bookmarks)
	return nil
}

func cmdSearch(ctx context.Context, client *community.Client, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: search <query...>")
	}

	result, err := client.Posts.Search(ctx, community.ListOptions{Query: strings.Join(args, " ")})
	if err != nil {
		return err
	}
	for _, p := range result.Items {
		fmt.Printf("%s  [%s] %s\n", p.ID, p.BoardSlug, p.Title)
	}
	fmt.Printf("%d matches\n", result.Total)
	return nil
}

func cmdServices(ctx context.Context, client *community.Client, args []string) error {
	fs := flag.NewFlagSet("services", flag.ContinueOnError)
	query := fs.String("q", "", "filter by name or category")
	inquire := fs.String("inquire", "", "send an inquiry to the service with this ID")
	message := fs.String("message", "", "inquiry message")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *inquire != "" {
		if *message == "" {
			return errors.New("usage: services -inquire <id> -message <text>")
		}
		inquiry, err := client.Services.Inquire(ctx, *inquire, community.InquiryDraft{Content: *message})
		if err != nil {
			return err
		}
		fmt.Printf("inquiry %s sent\n", inquiry.ID)
		return nil
	}

	result, err := client.Services.List(ctx, community.ListOptions{Query: *query})
	if err != nil {
		return err
	}
	for _, s := range result.Items {
		fmt.Printf("%s  %-20s %-10s %s (%s)\n", s.ID, s.Name, s.Category, s.Phone, s.Hours)
	}
	return nil
}

func cmdTips(ctx context.Context, client *community.Client) error {
	result, err := client.Tips.List(ctx, community.ListOptions{})
	if err != nil {
		return err
	}
	for _, tip := range result.Items {
		fmt.Printf("%s  %s\n    %s\n", tip.ID, tip.Title, tip.Content)
	}
	return nil
}

func cmdNotifications(ctx context.Context, client *community.Client, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	all := fs.Bool("all", false, "include already-read notifications")
	markRead := fs.Bool("mark-read", false, "mark everything read afterwards")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := client.Notifications.List(ctx, !*all, community.ListOptions{})
	if err != nil {
		return err
	}
	for _, n := range result.Items {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, n.CreatedAt.Format("01-02 15:04"), n.Message)
	}

	if *markRead {
		if err := client.Notifications.MarkAllRead(ctx); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: communityctl <command> [flags]

commands:
  login -email <email> -password <password>   sign in and persist the session
  logout                                      revoke the token pair and clear the session
  whoami                                      show the logged-in profile
  boards                                      list boards
  posts [-page N] [-size N] <board>           list posts on a board
  get <post-id>                               show a post with its comments
  post <board> <title> <content...>           create a post
  comment [-reply-to ID] <post-id> <text...>  comment on a post
  react [-comment] <id> <kind>                toggle like/dislike/bookmark
  search <query...>                           search posts
  services [-q filter] [-inquire ID -message text]
  tips                                        list living tips
  notifications [-all] [-mark-read]           list notifications
  version                                     print build information
`)
}
