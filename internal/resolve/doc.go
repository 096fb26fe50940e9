// Package resolve maps logical asset names onto files across an ordered
// list of search roots.
//
// A Trail knows three things: the roots (priority order, first wins), the
// registered extensions, and extension aliases. A logical name such as
// "lib/foo.js" matches any file in <root>/lib whose name is "foo.js"
// followed by zero or more registered extensions ("foo.js.tmpl"), and, when
// ".js" has aliases, names where an alias replaces it ("foo.coffee").
//
// Matches within one directory are ordered by extension priority: names
// whose trailing extensions were registered earlier sort first, alias
// matches sort after real ones.
package resolve
