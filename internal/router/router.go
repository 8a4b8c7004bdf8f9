package router

import (
	"encoding/csv"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrNotMatched is returned when unknown command is issued
	ErrNotMatched = errors.New("command not matched")
	// ErrInvalidInput matches every error created with InputError
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyCommand is returned when no command name is given
	ErrEmptyCommand = InputError("empty command")
)

type inputError struct {
	text string
}

func (err *inputError) Error() string {
	return err.text
}

func (err *inputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InputError returns error caused by malformed command arguments, matching ErrInvalidInput
func InputError(text string) error {
	return &inputError{text: text}
}

// Router implements routing dispatch
type Router struct {
	Routes             map[string]*Route
	GroupSorter        GroupSorterFunc
	DefaultRouteSorter RouteSorterFunc
	m                  *sync.Mutex
	Groups             []*Group
	Middleware         []MiddlewareFunc
}

// AppendMiddleware adds router-wide middleware
func (router *Router) AppendMiddleware(middleware MiddlewareFunc) {
	router.m.Lock()
	defer router.m.Unlock()

	router.Middleware = append(router.Middleware, middleware)

	for _, r := range router.Routes {
		r.Baked = nil
	}
}

// SplitArgs splits raw command line into arguments, honoring quotes
func SplitArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyCommand
	}

	reader := csv.NewReader(strings.NewReader(raw))
	reader.Comma = ' '
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	args, err := reader.Read()
	if err != nil {
		return nil, err
	}

	return args, nil
}

// Dispatch tries to find route matching chat message and execute it
func (router *Router) Dispatch(
	session *discordgo.Session,
	prefix, userID string,
	msg *discordgo.Message,
) error {
	if msg.Author == nil || msg.Author.ID == userID || msg.Author.Bot {
		return nil
	}

	raw := msg.Content
	if prefix == "" || !strings.HasPrefix(raw, prefix) {
		return nil
	}

	args, err := SplitArgs(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return err
	}

	return router.Execute(&Context{
		Session:   session,
		Message:   msg,
		Member:    msg.Member,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		UserID:    msg.Author.ID,
		Args:      args,
		Source:    SourceChat,
	})
}

// Execute runs route matching first argument of context
func (router *Router) Execute(ctx *Context) error {
	name := ctx.Args.Get(0)
	if name == "" {
		return ErrEmptyCommand
	}

	route := router.Match(name)
	if route == nil {
		return ErrNotMatched
	}

	ctx.Route = route

	return router.bake(route)(ctx)
}

// Match returns route matching given command name or nil
func (router *Router) Match(name string) *Route {
	router.m.Lock()
	defer router.m.Unlock()

	if r, ok := router.Routes[name]; ok {
		return r
	}

	for _, r := range router.Routes {
		if r.Matcher(name) {
			return r
		}
	}

	return nil
}

func (router *Router) bake(r *Route) HandlerFunc {
	router.m.Lock()
	defer router.m.Unlock()

	if r.Baked == nil {
		var middlewares []MiddlewareFunc

		middlewares = append(middlewares, router.Middleware...)

		for _, g := range r.Groups {
			middlewares = append(middlewares, g.Middleware...)
		}

		middlewares = append(middlewares, r.Middleware...)

		r.Baked = r.Handler
		for i := len(middlewares) - 1; i >= 0; i-- {
			r.Baked = middlewares[i](r.Baked)
		}
	}

	return r.Baked
}

// Group returns group with given name
func (router *Router) Group(name string) (cand *Group) {
	router.m.Lock()
	defer router.m.Unlock()

	cand = &Group{
		Name:        name,
		RouteSorter: router.DefaultRouteSorter,
		Router:      router,
		Data:        make(map[string]interface{}),
	}
	i := sort.Search(len(router.Groups), func(i int) bool {
		return router.GroupSorter(router.Groups[i], cand)
	})

	if i == len(router.Groups) || router.Groups[i].Name != name {
		router.Groups = append(router.Groups[:i], append([]*Group{cand}, router.Groups[i:]...)...)
	} else {
		cand = router.Groups[i]
	}

	return
}

// Route return route with given parameters
func (router *Router) Route(matcher MatcherFunc, name, desc string, handler HandlerFunc) (route *Route) {
	router.m.Lock()
	defer router.m.Unlock()

	var ok bool
	if route, ok = router.Routes[name]; !ok {
		route = &Route{
			Name:        name,
			Description: desc,
			Matcher:     matcher,
			Handler:     handler,
			Router:      router,
			Data:        make(map[string]interface{}),
		}
		router.Routes[name] = route
	}

	return
}

// On creates new route in given group using name matcher
func (router *Router) On(group, name, desc string, handler HandlerFunc) (route *Route) {
	return router.Group(group).On(name, desc, handler)
}

func nameMatcher(names ...string) MatcherFunc {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}

		return false
	}
}
