// Package workflow defines the core data model shared by the DAG validator,
// planner, and executor: workflows, typed nodes, edges, and data shapes.
//
// A shape describes an object's keys and value types without concrete values.
// Shapes are what the planner propagates through a graph before any real
// execution happens.
package workflow
