// Package main Flox Server API
//
//	@title						Flox Server API
//	@version					1.0
//	@description				Referral codes and subscription provisioning for Flox.
//
//	@contact.name				Flox Support
//	@contact.email				support@flox.app
//
//	@license.name				Proprietary
//
//	@host						localhost:8080
//	@BasePath					/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"
//
//	@securityDefinitions.apikey	AdminToken
//	@in							header
//	@name						X-Admin-Token
//	@description				Shared secret for administrative endpoints.
//
//	@tag.name					referral
//	@tag.description			Referral code validation and history
//
//	@tag.name					subscriptions
//	@tag.description			Plans, subscription provisioning and status
//
//	@tag.name					webhooks
//	@tag.description			Billing provider notifications
//
//	@tag.name					users
//	@tag.description			Current user
//
//	@tag.name					admin
//	@tag.description			Referral code administration
package main
