// Package storefront holds the order aggregate placed through the shop front
// and the repository contract used by the admin cleanup surface.
package storefront
