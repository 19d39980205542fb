// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main contains the API route definitions for the server. This file
// defines the review dashboard endpoints, which summarize the regeneration
// attempt audit trail: how providers perform and which scenes are waiting in
// the human review queue.
//
// Functions:
//   - DashboardRouter: Sets up the route group for statistics-related endpoints.
package main

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DashboardRouter configures the API routes for the review dashboard.
// It creates a new route group "/stats" nested under the main API router group.
//
// Inputs:
//   - r: A *gin.RouterGroup to which the new "/stats" route group will be added.
//
// Outputs:
//   - This function does not return any value. It modifies the provided *gin.RouterGroup
//     by adding new route handlers.
//
// This function defines the following endpoints:
//   - GET /stats: Returns attempt outcome counts per provider across the audit table.
//   - GET /stats/escalations: Lists scenes whose ladder was exhausted without a success.
func DashboardRouter(r *gin.RouterGroup) {
	// Create a new router group for statistics-related endpoints, prefixed with "/stats".
	stats := r.Group("/stats")
	{
		// Handler for GET /stats
		stats.GET("", func(c *gin.Context) {
			counts, err := state.auditService.OutcomeCounts(c)
			if err != nil {
				log.Printf("Error reading outcome counts: %v\n", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"provider_outcomes": counts})
		})

		// Handler for GET /stats/escalations?count=<n>
		stats.GET("/escalations", func(c *gin.Context) {
			count, err := strconv.Atoi(c.DefaultQuery("count", "20"))
			if err != nil {
				count = 20
			}
			escalations, err := state.auditService.RecentEscalations(c, count)
			if err != nil {
				log.Printf("Error reading escalations: %v\n", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"escalations": escalations})
		})
	}
}
