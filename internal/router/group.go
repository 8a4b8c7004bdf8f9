package router

import (
	"slices"
	"sort"
)

// Group groups a number of routes
type Group struct {
	Router      *Router
	RouteSorter RouteSorterFunc
	Data        map[string]interface{}
	Name        string
	Description string
	Routes      []*Route
	Middleware  []MiddlewareFunc
}

// SetDescription sets group description shown in help
func (group *Group) SetDescription(desc string) *Group {
	group.Description = desc

	return group
}

// Use appends group-wide middleware, applied after router-wide ones
func (group *Group) Use(middleware ...MiddlewareFunc) *Group {
	group.Router.m.Lock()
	defer group.Router.m.Unlock()

	group.Middleware = append(group.Middleware, middleware...)

	for _, r := range group.Routes {
		r.Baked = nil
	}

	return group
}

// On adds route to group using name matcher
func (group *Group) On(name, desc string, handler HandlerFunc) *Route {
	return group.OnAlias(name, desc, nil, handler)
}

// OnAlias adds route to group matching name or any of aliases
func (group *Group) OnAlias(name, desc string, alias []string, handler HandlerFunc) *Route {
	route := group.Router.Route(nameMatcher(append([]string{name}, alias...)...), name, desc, handler)
	route.Alias = alias

	group.AddRoute(route)

	return route
}

// AddRoute inserts route keeping group sorted, duplicates are ignored
func (group *Group) AddRoute(route *Route) {
	i := sort.Search(len(group.Routes), func(i int) bool {
		return group.RouteSorter(group.Routes[i], route)
	})

	if i < len(group.Routes) && group.Routes[i].Name == route.Name {
		return
	}

	group.Routes = slices.Insert(group.Routes, i, route)
	route.Groups = append(route.Groups, group)
}

// Set sets group data entry, inherited by routes of the group
func (group *Group) Set(k string, v interface{}) *Group {
	group.Data[k] = v

	return group
}

// Get returns group data entry
func (group *Group) Get(k string) interface{} {
	return group.Data[k]
}
