// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines the HTTP route table using Go 1.22+ method
patterns on the standard ServeMux.

Routes fall into four groups: public poll lookups under /poll, the
submission endpoint, the token-guarded admin surface under /admin, and
the app shells plus /static assets the offline cache installs. Static
path segments are registered before the dynamic /poll/{id} route.
*/
package router
