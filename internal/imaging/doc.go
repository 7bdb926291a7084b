// Package imaging prepares source images for upload and renders placeholder results.
//
// Uploads are decoded (jpeg, png, gif, webp, bmp, tiff), scaled so the longest side is
// at most [MaxDimension] pixels, and re-encoded as JPEG at [Quality].
package imaging
