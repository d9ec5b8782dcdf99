// Package firms implements the reference source connector for the NASA
// FIRMS (Fire Information for Resource Management System) area API.
//
// The API is key-authenticated and answers in CSV, GeoJSON or binary
// (shapefile) form depending on the requested format; the connector maps
// the declared content type onto the pipeline's payload formats and the
// HTTP failure modes onto the pipeline error taxonomy.
package firms
