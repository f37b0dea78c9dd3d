package command

import (
	"context"
	"fmt"
	"sort"

	"webcoder/pkg/errors"
	"webcoder/pkg/utils/contextkey"
	"webcoder/pkg/utils/logger"

	"go.uber.org/zap"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service: "user",
			Action:  "login",
			Summary: "log in and store the token pair",
			Example: "user login username=demo password=secret",
			Fields: []Field{
				{Name: "username", Aliases: []string{"user", "u"}, Prompt: "username", Type: FieldString, Required: true},
				{Name: "password", Aliases: []string{"p"}, Prompt: "password", Type: FieldSecret, Required: true},
			},
			Run: runLogin,
		},
		{
			Service: "user",
			Action:  "refresh",
			Summary: "trade the stored refresh token for a new access token",
			Run:     runRefresh,
		},
		{
			Service: "user",
			Action:  "logout",
			Summary: "forget the stored tokens",
			Run:     runLogout,
		},
		{
			Service:     "user",
			Action:      "me",
			Summary:     "show the logged in user",
			RequireAuth: true,
			Run:         runMe,
		},
		{
			Service: "problem",
			Action:  "get",
			Summary: "show a problem",
			Example: "problem get id=5",
			Fields: []Field{
				{Name: "id", Aliases: []string{"problem_id"}, Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "json", Type: FieldBool},
			},
			Run: runProblemGet,
		},
		{
			Service: "problem",
			Action:  "list",
			Summary: "list problems",
			Fields: []Field{
				{Name: "json", Type: FieldBool},
			},
			Run: runProblemList,
		},
		{
			Service:     "submit",
			Action:      "create",
			Summary:     "submit a solution, optionally following it to a verdict",
			Example:     "submit create problem_id=5 language=python3 source_file=./main.py watch=true",
			RequireAuth: true,
			Watches:     true,
			Fields: []Field{
				{Name: "problem_id", Aliases: []string{"problem"}, Prompt: "problem_id", Type: FieldString, Required: true},
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "source_file", Aliases: []string{"file"}, Prompt: "source_file", Type: FieldFile, Required: true, OneOf: "code"},
				{Name: "code", Aliases: []string{"source_code"}, Type: FieldString},
				{Name: "watch", Type: FieldBool},
			},
			Run: runSubmitCreate,
		},
		{
			Service:     "submit",
			Action:      "status",
			Summary:     "fetch a submission once",
			Example:     "submit status id=42",
			RequireAuth: true,
			Fields: []Field{
				{Name: "id", Aliases: []string{"submission_id"}, Prompt: "submission_id", Type: FieldString, Required: true},
				{Name: "json", Type: FieldBool},
			},
			Run: runSubmitStatus,
		},
		{
			Service:     "submit",
			Action:      "watch",
			Summary:     "follow submissions until they finish (Ctrl-C stops)",
			Example:     "submit watch id=42,43",
			RequireAuth: true,
			Watches:     true,
			Fields: []Field{
				{Name: "id", Aliases: []string{"ids", "submission_id"}, Prompt: "submission_id", Type: FieldStringList, Required: true},
			},
			Run: runSubmitWatch,
		},
		{
			Service: "submit",
			Action:  "history",
			Summary: "show recently tracked submissions",
			Fields: []Field{
				{Name: "limit", Type: FieldInt},
			},
			Run: runSubmitHistory,
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// Sorted returns the commands of registry ordered by key.
func Sorted(registry map[string]Command) []Command {
	keys := make([]string, 0, len(registry))
	for key := range registry {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]Command, 0, len(keys))
	for _, key := range keys {
		out = append(out, registry[key])
	}
	return out
}

// Execute validates params and runs cmd.
func Execute(ctx context.Context, app *App, cmd Command, params Params) error {
	params.Canonicalize(cmd.Fields)
	if missing := Missing(cmd, params); len(missing) > 0 {
		return errors.ValidationError(missing[0].Name, "is required")
	}
	if err := Validate(cmd, params); err != nil {
		return errors.Wrap(err, errors.InvalidParams)
	}
	ctx = context.WithValue(ctx, contextkey.Command, cmd.Key())
	if cmd.RequireAuth {
		if err := ensureAuth(ctx, app); err != nil {
			return err
		}
	}
	return cmd.Run(ctx, app, params)
}

// ensureAuth refreshes an expired access token when a refresh token is
// stored.
func ensureAuth(ctx context.Context, app *App) error {
	_, err := app.Session.BearerToken()
	if err == nil {
		return nil
	}
	if !errors.Is(err, errors.TokenExpired) || app.Session.RefreshToken() == "" {
		return err
	}
	logger.Info(ctx, "access token expired, refreshing")
	pair, rerr := app.Auth.Refresh(ctx, app.Session.RefreshToken())
	if rerr != nil {
		logger.Warn(ctx, "token refresh failed", zap.Error(rerr))
		return err
	}
	if serr := app.Session.SetTokens(pair.Access, pair.Refresh); serr != nil {
		return fmt.Errorf("save token state failed: %w", serr)
	}
	return nil
}
